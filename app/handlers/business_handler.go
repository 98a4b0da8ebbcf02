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

// BusinessHandlerInterface defines the contract for business profile handlers
type BusinessHandlerInterface interface {
	GetMyBusiness(c fiber.Ctx) error
	UpdateMyBusiness(c fiber.Ctx) error
	GetPublicBusiness(c fiber.Ctx) error
	CreateOnboardingLink(c fiber.Ctx) error
}

// BusinessHandler handles business profile HTTP requests
type BusinessHandler struct {
	flow      businessflow.BusinessProfileFlow
	validator *validator.Validate
}

// NewBusinessHandler creates a new business profile handler
func NewBusinessHandler(flow businessflow.BusinessProfileFlow) *BusinessHandler {
	handler := &BusinessHandler{
		flow:      flow,
		validator: validator.New(),
	}

	setupCustomValidations(handler.validator)

	return handler
}

func (h *BusinessHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *BusinessHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// GetMyBusiness returns the authenticated user's business profile
// @Summary Get own business
// @Description Retrieve the authenticated business account's profile
// @Tags Businesses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.BusinessDTO} "Business retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Not a business account"
// @Failure 404 {object} dto.APIResponse "Business not found"
// @Router /api/v1/businesses/me [get]
func (h *BusinessHandler) GetMyBusiness(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.GetMyBusiness(h.createRequestContext(c, "/api/v1/businesses/me"), userID)
	if err != nil {
		return h.mapBusinessError(c, err, "GET_BUSINESS_FAILED", "Failed to get business")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Business retrieved successfully", result)
}

// UpdateMyBusiness updates the authenticated user's business profile
// @Summary Update own business
// @Description Update the descriptive fields of the business profile
// @Tags Businesses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateBusinessRequest true "Business fields to update"
// @Success 200 {object} dto.APIResponse{data=dto.BusinessDTO} "Business updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Not a business account"
// @Router /api/v1/businesses/me [put]
func (h *BusinessHandler) UpdateMyBusiness(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.UpdateBusinessRequest
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

	result, err := h.flow.UpdateMyBusiness(h.createRequestContext(c, "/api/v1/businesses/me"), userID, &req, metadata)
	if err != nil {
		return h.mapBusinessError(c, err, "UPDATE_BUSINESS_FAILED", "Failed to update business")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Business updated successfully", result)
}

// GetPublicBusiness returns a public business page with its active deals
// @Summary Public business page
// @Description Retrieve a business profile and its active deals
// @Tags Businesses
// @Produce json
// @Param id path int true "Business ID"
// @Success 200 {object} dto.APIResponse{data=dto.PublicBusinessResponse} "Business retrieved successfully"
// @Failure 404 {object} dto.APIResponse "Business not found"
// @Router /api/v1/businesses/{id} [get]
func (h *BusinessHandler) GetPublicBusiness(c fiber.Ctx) error {
	businessID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid business ID", "INVALID_BUSINESS_ID", nil)
	}

	result, err := h.flow.GetPublicBusiness(h.createRequestContext(c, "/api/v1/businesses/:id"), uint(businessID))
	if err != nil {
		if businessflow.IsBusinessNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Business not found", "BUSINESS_NOT_FOUND", nil)
		}

		log.Println("Get public business failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get business", "GET_BUSINESS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Business retrieved successfully", result)
}

// CreateOnboardingLink creates a hosted payment onboarding link
// @Summary Create onboarding link
// @Description Create a fresh hosted onboarding link for the connected payment account
// @Tags Businesses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.OnboardingLinkResponse} "Onboarding link created"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "No connected payment account"
// @Failure 502 {object} dto.APIResponse "Payment provider error"
// @Router /api/v1/businesses/me/onboarding-link [post]
func (h *BusinessHandler) CreateOnboardingLink(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.CreateOnboardingLink(h.createRequestContext(c, "/api/v1/businesses/me/onboarding-link"), userID, metadata)
	if err != nil {
		if businessflow.IsNoStripeAccount(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Business has no connected payment account", "NO_PAYMENT_ACCOUNT", nil)
		}
		if businessflow.IsUpstreamGateway(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Payment provider request failed", "UPSTREAM_ERROR", nil)
		}

		return h.mapBusinessError(c, err, "ONBOARDING_LINK_FAILED", "Failed to create onboarding link")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Onboarding link created successfully", result)
}

// Private helper methods

func (h *BusinessHandler) mapBusinessError(c fiber.Ctx, err error, code, message string) error {
	if businessflow.IsUserNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
	}
	if businessflow.IsNotBusinessAccount(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "User is not a business account", "NOT_BUSINESS_ACCOUNT", nil)
	}
	if businessflow.IsBusinessNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Business not found", "BUSINESS_NOT_FOUND", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}

func (h *BusinessHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *BusinessHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
