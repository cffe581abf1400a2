package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"arbsignals/internal/client/nowpayments"
	"arbsignals/internal/models"
	"arbsignals/internal/repository"
	"arbsignals/internal/service"
)

const confirmTimeout = 30 * time.Second

// BillingHandler owns the subscribe flow and the payment provider webhook.
type BillingHandler struct {
	Payments *service.PaymentService
	Verifier nowpayments.IPNVerifier
	Repo     repository.Repository
	Logger   *zap.Logger
}

func (h *BillingHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/subscribe", h.subscribe)
	r.POST("/webhooks/nowpayments", h.webhook)
}

type subscribeRequest struct {
	Email    string `json:"email" binding:"required"`
	Tier     string `json:"tier"`
	Currency string `json:"currency"`
}

// @Summary Create a subscription and its crypto payment
// @Tags billing
// @Accept json
// @Param request body subscribeRequest true "subscription request"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 500 {object} apiResponse
// @Router /api/v1/subscribe [post]
func (h *BillingHandler) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.Tier == "" {
		req.Tier = "basic"
	}
	instructions, err := h.Payments.CreateSubscription(c.Request.Context(), req.Email, req.Tier, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrInvalidTier),
			errors.Is(err, service.ErrDuplicateEmail):
			Error(c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, service.ErrPaymentProvider):
			Error(c, http.StatusInternalServerError, "payment creation failed", nil)
		default:
			if h.Logger != nil {
				h.Logger.Error("subscription create failed", zap.Error(err))
			}
			Error(c, http.StatusInternalServerError, "internal error", nil)
		}
		return
	}
	Ok(c, instructions, nil)
}

type webhookPayload struct {
	PaymentID     nowpayments.PaymentID `json:"payment_id"`
	PaymentStatus string                `json:"payment_status"`
}

// @Summary NOWPayments IPN callback
// @Tags billing
// @Accept json
// @Success 200 {object} map[string]string
// @Failure 400 {object} apiResponse
// @Failure 401 {object} apiResponse
// @Router /webhooks/nowpayments [post]
func (h *BillingHandler) webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	ok, err := h.Verifier.Verify(body, c.GetHeader("x-nowpayments-sig"))
	if err != nil {
		h.logger().Warn("webhook verification error", zap.Error(err))
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if !ok {
		Error(c, http.StatusUnauthorized, "invalid signature", nil)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	event := &models.WebhookEvent{
		Provider:          "nowpayments",
		ProviderPaymentID: payload.PaymentID.String(),
		PaymentStatus:     payload.PaymentStatus,
		Payload:           datatypes.JSON(body),
	}
	if err := h.Repo.InsertWebhookEvent(c.Request.Context(), event); err != nil {
		h.logger().Warn("webhook event insert failed",
			zap.String("payment_id", payload.PaymentID.String()),
			zap.Error(err),
		)
	}

	if payload.PaymentStatus == "confirmed" && payload.PaymentID != "" {
		h.confirmAsync(event.ID, payload.PaymentID.String())
	}
	// Provider retries on non-2xx; failures above are logged, not surfaced.
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// confirmAsync runs the confirmation on a detached context so a provider
// disconnect cannot cancel activation mid-flight.
func (h *BillingHandler) confirmAsync(eventID uint64, paymentID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
		defer cancel()
		if err := h.Payments.ConfirmPayment(ctx, paymentID); err != nil {
			h.logger().Error("payment confirmation failed",
				zap.String("payment_id", paymentID),
				zap.Error(err),
			)
			return
		}
		if err := h.Repo.MarkWebhookEventProcessed(ctx, eventID, time.Now().UTC()); err != nil {
			h.logger().Warn("webhook event mark processed failed",
				zap.Uint64("event_id", eventID),
				zap.Error(err),
			)
		}
	}()
}

func (h *BillingHandler) logger() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.NewNop()
}
