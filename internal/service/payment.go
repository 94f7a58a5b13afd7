package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"adgrid/internal/events"
	"adgrid/internal/metrics"
	"adgrid/internal/model"
	"adgrid/internal/repository"
	"adgrid/internal/signature"
)

const (
	headerWebhookSignature = "X-Razorpay-Signature"
	headerWebhookEventID   = "X-Razorpay-Event-Id"
)

type VerifyInput struct {
	PaymentID string
	OrderID   string
	Signature string
	UserID    string
	BoxIndex  *int
}

type VerifyResult struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

type PaymentService interface {
	VerifyAndAuthorize(ctx context.Context, in VerifyInput) (*VerifyResult, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}

type paymentServiceImpl struct {
	verifySecret     string
	webhookSecret    string
	purchaseTracker  PurchaseTracker
	webhookEventRepo repository.WebhookEventRepository
	publisher        events.Publisher
}

func NewPaymentService(
	verifySecret string,
	webhookSecret string,
	purchaseTracker PurchaseTracker,
	webhookEventRepo repository.WebhookEventRepository,
	publisher events.Publisher,
) PaymentService {
	return &paymentServiceImpl{
		verifySecret:     verifySecret,
		webhookSecret:    webhookSecret,
		purchaseTracker:  purchaseTracker,
		webhookEventRepo: webhookEventRepo,
		publisher:        publisher,
	}
}

func (s *paymentServiceImpl) VerifyAndAuthorize(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	if in.PaymentID == "" || in.OrderID == "" || in.Signature == "" || in.UserID == "" || in.BoxIndex == nil {
		metrics.VerificationsTotal.WithLabelValues("invalid").Inc()
		return &VerifyResult{Reason: "Missing fields"}, newError(ErrValidation, "Missing fields", nil)
	}
	boxIndex := *in.BoxIndex
	if !model.ValidBoxIndex(boxIndex) {
		metrics.VerificationsTotal.WithLabelValues("invalid").Inc()
		return &VerifyResult{Reason: "Invalid box index"}, newError(ErrValidation, "Invalid box index", nil)
	}

	ok, err := signature.Verify(in.OrderID, in.PaymentID, in.Signature, s.verifySecret)
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "payment verification secret missing", "env", "RAZORPAY_WEBHOOK_SECRET")
		return &VerifyResult{Reason: "Payment verification not configured"},
			newError(ErrConfiguration, "Payment verification not configured", err)
	}
	if !ok {
		metrics.VerificationsTotal.WithLabelValues("invalid_signature").Inc()
		slog.WarnContext(ctx, "signature verification failed",
			"security_event", true, "order_id", in.OrderID, "payment_id", in.PaymentID,
			"user_id", in.UserID, "box_index", boxIndex)
		s.failPending(ctx, in.OrderID, in.UserID, "signature verification failed")
		return &VerifyResult{Reason: "Invalid signature"}, newError(ErrSignature, "Invalid signature", nil)
	}

	transitioned, err := s.purchaseTracker.MarkCompleted(ctx, in.UserID, boxIndex, in.OrderID, in.PaymentID)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrConflict) {
			outcome = "conflict"
		}
		metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
		slog.WarnContext(ctx, "purchase authorization failed",
			"order_id", in.OrderID, "user_id", in.UserID, "box_index", boxIndex, "error", err)
		return &VerifyResult{Reason: PublicMessage(err, "Internal server error")}, err
	}

	metrics.VerificationsTotal.WithLabelValues("verified").Inc()
	if transitioned {
		slog.InfoContext(ctx, "purchase completed",
			"order_id", in.OrderID, "payment_id", in.PaymentID, "user_id", in.UserID, "box_index", boxIndex)
		s.publish(ctx, events.New(events.TypePurchaseCompleted, "purchase", in.OrderID, boxIndex, in.UserID, map[string]any{
			"status": model.PurchaseCompleted,
		}))
	}

	return &VerifyResult{Verified: true}, nil
}

// failPending marks the caller's own pending purchase failed; other users'
// orders are left alone so a forged request cannot cancel them.
func (s *paymentServiceImpl) failPending(ctx context.Context, orderID, userID, reason string) {
	p, err := s.purchaseTracker.FindOrder(ctx, orderID)
	if err != nil || p == nil || p.UserID != userID {
		return
	}

	failed, err := s.purchaseTracker.MarkFailed(ctx, orderID, reason)
	if err != nil {
		slog.ErrorContext(ctx, "mark purchase failed", "order_id", orderID, "error", err)
		return
	}
	if failed != nil {
		s.publishFailed(ctx, failed)
	}
}

func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	ok, err := signature.VerifyWebhook(body, headers.Get(headerWebhookSignature), s.webhookSecret)
	if err != nil {
		return newError(ErrConfiguration, "Webhook secret not configured", err)
	}
	if !ok {
		slog.WarnContext(ctx, "webhook signature verification failed", "security_event", true)
		return newError(ErrSignature, "Invalid signature", nil)
	}

	var event model.RazorpayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return newError(ErrValidation, "Invalid webhook payload", err)
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.Event).Inc()

	eventID := headers.Get(headerWebhookEventID)
	if eventID != "" {
		first, err := s.webhookEventRepo.MarkProcessed(ctx, eventID, event.Event)
		if err != nil {
			return newError(ErrStorage, "failed to record webhook event", err)
		}
		if !first {
			slog.InfoContext(ctx, "duplicate webhook event ignored", "event_id", eventID, "event", event.Event)
			return nil
		}
	}

	if err := s.dispatchWebhook(ctx, &event); err != nil {
		if eventID != "" {
			if ferr := s.webhookEventRepo.Forget(ctx, eventID); ferr != nil {
				slog.ErrorContext(ctx, "forget webhook event", "event_id", eventID, "error", ferr)
			}
		}
		return err
	}
	return nil
}

func (s *paymentServiceImpl) dispatchWebhook(ctx context.Context, event *model.RazorpayWebhookEvent) error {
	payment := event.Payload.Payment.Entity

	switch event.Event {
	case "payment.failed":
		if payment.OrderID == "" {
			return newError(ErrValidation, "missing order_id in payment.failed", nil)
		}
		reason := payment.ErrorDescription
		if reason == "" {
			reason = "payment failed"
		}
		failed, err := s.purchaseTracker.MarkFailed(ctx, payment.OrderID, reason)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "processor reported payment failure",
			"order_id", payment.OrderID, "payment_id", payment.ID, "reason", reason, "updated", failed != nil)
		if failed != nil {
			s.publishFailed(ctx, failed)
		}
	case "payment.captured", "order.paid":
		// ownership is granted by signature verification, not by webhooks
		slog.InfoContext(ctx, "processor reported payment", "event", event.Event,
			"order_id", payment.OrderID, "payment_id", payment.ID)
	default:
		slog.DebugContext(ctx, "unhandled webhook event", "event", event.Event)
	}
	return nil
}

func (s *paymentServiceImpl) publishFailed(ctx context.Context, p *model.Purchase) {
	s.publish(ctx, events.New(events.TypePurchaseFailed, "purchase", p.OrderID, p.BoxIndex, p.UserID, map[string]any{
		"status": model.PurchaseFailed,
		"reason": p.FailureReason,
	}))
}

func (s *paymentServiceImpl) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "publish event", "type", event.Type, "error", err)
	}
}
