// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/Hassan-Shakoor/DealShark-BE/app/dto"
	"github.com/Hassan-Shakoor/DealShark-BE/app/middleware"
	businessflow "github.com/Hassan-Shakoor/DealShark-BE/business_flow"
	"github.com/Hassan-Shakoor/DealShark-BE/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// PaymentHandlerInterface defines the contract for payment and settlement handlers
type PaymentHandlerInterface interface {
	Webhook(c fiber.Ctx) error
	CreateCheckout(c fiber.Ctx) error
	MySettlements(c fiber.Ctx) error
}

// PaymentHandler handles payment webhook and checkout HTTP requests
type PaymentHandler struct {
	flow      businessflow.SettlementFlow
	validator *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(flow businessflow.SettlementFlow) *PaymentHandler {
	handler := &PaymentHandler{
		flow:      flow,
		validator: validator.New(),
	}

	setupCustomValidations(handler.validator)

	return handler
}

func (h *PaymentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PaymentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Webhook receives payment provider events
// @Summary Payment provider webhook
// @Description Receives checkout and account events from the payment provider. Signature verification is mandatory.
// @Tags Payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Webhook signature"
// @Success 200 {object} dto.APIResponse{data=dto.WebhookAckResponse} "Event accepted"
// @Failure 400 {object} dto.APIResponse "Invalid signature"
// @Failure 500 {object} dto.APIResponse "Transient processing failure"
// @Router /api/v1/webhooks/stripe [post]
func (h *PaymentHandler) Webhook(c fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("Stripe-Signature")

	// Webhook processing must not share the 30s interactive budget with
	// retries pending upstream; the provider retries on non-2xx anyway.
	result, err := h.flow.HandleWebhook(h.createRequestContextWithTimeout(c, "/api/v1/webhooks/stripe", 60*time.Second), payload, signature)
	if err != nil {
		if businessflow.IsWebhookSignatureInvalid(err) {
			middleware.RecordWebhookEvent("rejected")
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook signature", "INVALID_WEBHOOK_SIGNATURE", nil)
		}

		log.Println("Webhook processing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook processing failed", "WEBHOOK_FAILED", nil)
	}

	middleware.RecordWebhookEvent(result.Status)
	return h.SuccessResponse(c, fiber.StatusOK, "Event accepted", result)
}

// CreateCheckout opens a checkout session attributed to a referral code
// @Summary Create checkout session
// @Description Create a payment checkout session tied to a referral code
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.CreateCheckoutRequest true "Checkout parameters"
// @Success 200 {object} dto.APIResponse{data=dto.CreateCheckoutResponse} "Checkout session created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Referral code not found"
// @Failure 502 {object} dto.APIResponse "Payment provider unavailable"
// @Router /api/v1/payments/checkout [post]
func (h *PaymentHandler) CreateCheckout(c fiber.Ctx) error {
	var req dto.CreateCheckoutRequest
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

	result, err := h.flow.CreateCheckout(h.createRequestContext(c, "/api/v1/payments/checkout"), &req, metadata)
	if err != nil {
		if businessflow.IsReferralCodeNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Referral code not found", "REFERRAL_CODE_NOT_FOUND", nil)
		}
		if businessflow.IsUpstreamGateway(err) {
			return h.ErrorResponse(c, fiber.StatusBadGateway, "Payment provider unavailable", "UPSTREAM_GATEWAY_ERROR", nil)
		}

		log.Println("Create checkout failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Checkout creation failed", "CHECKOUT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Checkout session created", result)
}

// MySettlements returns settlements where the caller earned a referrer cut
// @Summary List own settlements
// @Description Retrieve settlements credited to the authenticated referrer
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset (default 0)"
// @Success 200 {object} dto.APIResponse{data=dto.ListSettlementsResponse} "Settlements retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/payments/settlements [get]
func (h *PaymentHandler) MySettlements(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	result, err := h.flow.MySettlements(h.createRequestContext(c, "/api/v1/payments/settlements"), userID, limit, offset)
	if err != nil {
		log.Println("List settlements failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list settlements", "GET_SETTLEMENTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Settlements retrieved successfully", result)
}

// Private helper methods

func (h *PaymentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *PaymentHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
