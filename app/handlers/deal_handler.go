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

// DealHandlerInterface defines the contract for deal catalog handlers
type DealHandlerInterface interface {
	CreateDeal(c fiber.Ctx) error
	ListDeals(c fiber.Ctx) error
	GetDeal(c fiber.Ctx) error
	MyDeals(c fiber.Ctx) error
	DeleteDeal(c fiber.Ctx) error
}

// DealHandler handles deal catalog HTTP requests
type DealHandler struct {
	flow      businessflow.DealFlow
	validator *validator.Validate
}

// NewDealHandler creates a new deal handler
func NewDealHandler(flow businessflow.DealFlow) *DealHandler {
	handler := &DealHandler{
		flow:      flow,
		validator: validator.New(),
	}

	setupCustomValidations(handler.validator)

	return handler
}

func (h *DealHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *DealHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateDeal publishes a new deal
// @Summary Create deal
// @Description Publish a new deal for an onboarded business
// @Tags Deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateDealRequest true "Deal data"
// @Success 201 {object} dto.APIResponse{data=dto.DealDTO} "Deal created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Business not onboarded"
// @Failure 409 {object} dto.APIResponse "Duplicate active deal name"
// @Router /api/v1/deals [post]
func (h *DealHandler) CreateDeal(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.CreateDealRequest
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

	result, err := h.flow.CreateDeal(h.createRequestContext(c, "/api/v1/deals"), userID, &req, metadata)
	if err != nil {
		// Handle specific business errors
		if businessflow.IsNotBusinessAccount(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "User is not a business account", "NOT_BUSINESS_ACCOUNT", nil)
		}
		if businessflow.IsNoStripeAccount(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Business has no connected payment account", "NO_PAYMENT_ACCOUNT", nil)
		}
		if businessflow.IsOnboardingIncomplete(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Business has not completed payment onboarding", "ONBOARDING_INCOMPLETE", nil)
		}
		if businessflow.IsDuplicateCommissionPct(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "You already have a deal with this commission amount", "DUPLICATE_COMMISSION", nil)
		}
		if businessflow.IsCommissionPctRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Commission percentage is required for commission deals", "COMMISSION_PCT_REQUIRED", nil)
		}
		if businessflow.IsCommissionPctOutOfRange(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Commission percentage must be greater than 0 and at most 100", "COMMISSION_PCT_OUT_OF_RANGE", nil)
		}
		if businessflow.IsCommissionPctForbidden(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Commission percentage is not allowed for no-reward deals", "COMMISSION_PCT_FORBIDDEN", nil)
		}
		if businessflow.IsInvalidRewardType(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Reward type must be either commission or no_reward", "INVALID_REWARD_TYPE", nil)
		}
		if businessflow.IsBusinessNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Business not found", "BUSINESS_NOT_FOUND", nil)
		}

		log.Println("Deal creation failed", err)
		// Handle generic business errors
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Deal creation failed", "DEAL_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Deal created successfully", result)
}

// ListDeals returns the public deal catalog
// @Summary List deals
// @Description Search and filter the public catalog of active deals
// @Tags Deals
// @Produce json
// @Param search query string false "Free-text search over deal and business names"
// @Param reward_type query string false "Filter by reward type" Enums(commission, no_reward)
// @Param industry query string false "Filter by business industry"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListDealsResponse} "Deals retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/deals [get]
func (h *DealHandler) ListDeals(c fiber.Ctx) error {
	var req dto.ListDealsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.flow.ListDeals(h.createRequestContext(c, "/api/v1/deals"), &req)
	if err != nil {
		if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
		}

		log.Println("List deals failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list deals", "DEAL_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Deals retrieved successfully", result)
}

// GetDeal returns a single deal
// @Summary Get deal
// @Description Retrieve one active deal with its business
// @Tags Deals
// @Produce json
// @Param id path int true "Deal ID"
// @Success 200 {object} dto.APIResponse{data=dto.DealDTO} "Deal retrieved successfully"
// @Failure 404 {object} dto.APIResponse "Deal not found"
// @Router /api/v1/deals/{id} [get]
func (h *DealHandler) GetDeal(c fiber.Ctx) error {
	dealID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid deal ID", "INVALID_DEAL_ID", nil)
	}

	result, err := h.flow.GetDeal(h.createRequestContext(c, "/api/v1/deals/:id"), uint(dealID))
	if err != nil {
		if businessflow.IsDealNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Deal not found", "DEAL_NOT_FOUND", nil)
		}

		log.Println("Get deal failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get deal", "GET_DEAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Deal retrieved successfully", result)
}

// MyDeals returns the authenticated business's deals
// @Summary List own deals
// @Description Retrieve every deal of the authenticated business, active or not
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListDealsResponse} "Deals retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Not a business account"
// @Router /api/v1/deals/mine [get]
func (h *DealHandler) MyDeals(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.flow.MyDeals(h.createRequestContext(c, "/api/v1/deals/mine"), userID)
	if err != nil {
		if businessflow.IsNotBusinessAccount(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "User is not a business account", "NOT_BUSINESS_ACCOUNT", nil)
		}
		if businessflow.IsBusinessNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Business not found", "BUSINESS_NOT_FOUND", nil)
		}

		log.Println("List own deals failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list deals", "DEAL_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Deals retrieved successfully", result)
}

// DeleteDeal deactivates one of the business's deals
// @Summary Delete deal
// @Description Deactivate a deal owned by the authenticated business
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Success 200 {object} dto.APIResponse "Deal deleted successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Deal owned by another business"
// @Failure 404 {object} dto.APIResponse "Deal not found"
// @Router /api/v1/deals/{id} [delete]
func (h *DealHandler) DeleteDeal(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	dealID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid deal ID", "INVALID_DEAL_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err = h.flow.DeleteDeal(h.createRequestContext(c, "/api/v1/deals/:id"), userID, uint(dealID), metadata)
	if err != nil {
		if businessflow.IsDealNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Deal not found", "DEAL_NOT_FOUND", nil)
		}
		if businessflow.IsDealAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Deal belongs to another business", "DEAL_ACCESS_DENIED", nil)
		}
		if businessflow.IsNotBusinessAccount(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "User is not a business account", "NOT_BUSINESS_ACCOUNT", nil)
		}

		log.Println("Delete deal failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete deal", "DEAL_DELETE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Deal deleted successfully", nil)
}

func (h *DealHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *DealHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
