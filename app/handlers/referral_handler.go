// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	businessflow "github.com/Hassan-Shakoor/DealShark-BE/business_flow"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ReferralHandlerInterface defines the contract for referral subscription handlers
type ReferralHandlerInterface interface {
	Subscribe(c fiber.Ctx) error
	Unsubscribe(c fiber.Ctx) error
	Resolve(c fiber.Ctx) error
	MySubscriptions(c fiber.Ctx) error
	DealSubscribers(c fiber.Ctx) error
	ExportDealSubscribers(c fiber.Ctx) error
}

// ReferralHandler handles referral subscription HTTP requests
type ReferralHandler struct {
	flow      businessflow.SubscriptionFlow
	validator *validator.Validate
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(flow businessflow.SubscriptionFlow) *ReferralHandler {
	handler := &ReferralHandler{
		flow:      flow,
		validator: validator.New(),
	}

	setupCustomValidations(handler.validator)

	return handler
}

func (h *ReferralHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ReferralHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Subscribe enrolls the authenticated user as a referrer of a deal
// @Summary Subscribe to deal
// @Description Subscribe to a deal as a referrer and receive a shareable referral link. Repeat subscribes return the existing link.
// @Tags Referrals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SubscribeRequest true "Deal to subscribe to"
// @Success 200 {object} dto.APIResponse{data=dto.SubscribeResponse} "Subscribed successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Referrer not eligible"
// @Failure 404 {object} dto.APIResponse "Deal not found"
// @Router /api/v1/referrals/subscribe [post]
func (h *ReferralHandler) Subscribe(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.SubscribeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.Subscribe(h.createRequestContext(c, "/api/v1/referrals/subscribe"), userID, &req, metadata)
	if err != nil {
		if businessflow.IsDealNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Deal not found", "DEAL_NOT_FOUND", nil)
		}
		if businessflow.IsReferrerNoPayoutAccount(err) || businessflow.IsReferrerNotOnboarded(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "A linked and fully onboarded payout account is required to subscribe", "REFERRER_NOT_ELIGIBLE", nil)
		}
		if businessflow.IsReferralCodeExhausted(err) {
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Could not generate a unique referral code", "REFERRAL_CODE_EXHAUSTED", nil)
		}

		log.Println("Subscribe failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Subscription failed", "SUBSCRIBE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Subscribed successfully", result)
}

// Unsubscribe removes the authenticated user's subscription to a deal
// @Summary Unsubscribe from deal
// @Description Remove the referrer's subscription to a deal
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Param deal_id path int true "Deal ID"
// @Success 200 {object} dto.APIResponse "Unsubscribed successfully"
// @Failure 404 {object} dto.APIResponse "Subscription not found"
// @Router /api/v1/referrals/subscriptions/{deal_id} [delete]
func (h *ReferralHandler) Unsubscribe(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	dealID, err := strconv.ParseUint(c.Params("deal_id"), 10, 32)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid deal ID", "INVALID_DEAL_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err = h.flow.Unsubscribe(h.createRequestContext(c, "/api/v1/referrals/subscriptions/:deal_id"), userID, uint(dealID), metadata)
	if err != nil {
		if businessflow.IsSubscriptionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Subscription not found", "SUBSCRIPTION_NOT_FOUND", nil)
		}

		log.Println("Unsubscribe failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Unsubscribe failed", "UNSUBSCRIBE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Unsubscribed successfully", nil)
}

// Resolve maps a referral code to its deal, business, and referrer
// @Summary Resolve referral code
// @Description Public landing endpoint behind every shared referral link
// @Tags Referrals
// @Produce json
// @Param code path string true "Referral code"
// @Success 200 {object} dto.APIResponse{data=dto.ResolveReferralResponse} "Referral resolved successfully"
// @Failure 404 {object} dto.APIResponse "Referral code not found"
// @Router /api/v1/referrals/resolve/{code} [get]
func (h *ReferralHandler) Resolve(c fiber.Ctx) error {
	code := c.Params("code")

	result, err := h.flow.Resolve(h.createRequestContext(c, "/api/v1/referrals/resolve/:code"), code)
	if err != nil {
		if businessflow.IsReferralCodeNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Referral code not found", "REFERRAL_CODE_NOT_FOUND", nil)
		}

		log.Println("Resolve referral failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Referral resolution failed", "RESOLVE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Referral resolved successfully", result)
}

// MySubscriptions returns the authenticated user's subscriptions
// @Summary List own subscriptions
// @Description Retrieve the referrer's active subscriptions with their links
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListSubscriptionsResponse} "Subscriptions retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/referrals/subscriptions [get]
func (h *ReferralHandler) MySubscriptions(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.MySubscriptions(h.createRequestContext(c, "/api/v1/referrals/subscriptions"), userID)
	if err != nil {
		log.Println("List subscriptions failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list subscriptions", "GET_SUBSCRIPTIONS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Subscriptions retrieved successfully", result)
}

// DealSubscribers returns the referrers subscribed to a deal
// @Summary List deal subscribers
// @Description Retrieve the referrers subscribed to one of the business's deals
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Success 200 {object} dto.APIResponse{data=dto.DealSubscribersResponse} "Subscribers retrieved successfully"
// @Failure 403 {object} dto.APIResponse "Deal owned by another business"
// @Failure 404 {object} dto.APIResponse "Deal not found"
// @Router /api/v1/deals/{id}/subscribers [get]
func (h *ReferralHandler) DealSubscribers(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	dealID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid deal ID", "INVALID_DEAL_ID", nil)
	}

	result, err := h.flow.DealSubscribers(h.createRequestContext(c, "/api/v1/deals/:id/subscribers"), userID, uint(dealID))
	if err != nil {
		return h.mapSubscriberError(c, err)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Subscribers retrieved successfully", result)
}

// ExportDealSubscribers downloads a deal's subscribers as an XLSX workbook
// @Summary Export deal subscribers
// @Description Download the subscribers of a deal as an Excel file
// @Tags Referrals
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Success 200 {file} binary "XLSX file"
// @Failure 403 {object} dto.APIResponse "Deal owned by another business"
// @Failure 404 {object} dto.APIResponse "Deal not found"
// @Router /api/v1/deals/{id}/subscribers/export [get]
func (h *ReferralHandler) ExportDealSubscribers(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	dealID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid deal ID", "INVALID_DEAL_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	filename, data, err := h.flow.ExportDealSubscribers(h.createRequestContext(c, "/api/v1/deals/:id/subscribers/export"), userID, uint(dealID), metadata)
	if err != nil {
		return h.mapSubscriberError(c, err)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// Private helper methods

func (h *ReferralHandler) mapSubscriberError(c fiber.Ctx, err error) error {
	if businessflow.IsNotBusinessAccount(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "User is not a business account", "NOT_BUSINESS_ACCOUNT", nil)
	}
	if businessflow.IsBusinessNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Business not found", "BUSINESS_NOT_FOUND", nil)
	}
	if businessflow.IsDealNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Deal not found", "DEAL_NOT_FOUND", nil)
	}
	if businessflow.IsDealAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Deal belongs to another business", "DEAL_ACCESS_DENIED", nil)
	}

	log.Println("Deal subscribers request failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load subscribers", "GET_SUBSCRIBERS_FAILED", nil)
}

func (h *ReferralHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *ReferralHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
