package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adgrid/internal/client"
	"adgrid/internal/config"
	"adgrid/internal/metrics"
	"adgrid/internal/model"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "INR"

var minorUnitsPerMajor = decimal.NewFromInt(100)

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type CreateOrderInput struct {
	Amount   decimal.Decimal // major units
	Currency string
	UserID   string
	BoxIndex *int
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
}

type orderServiceImpl struct {
	razorpayClient  client.RazorpayClient
	purchaseTracker PurchaseTracker
	currency        string
	now             func() time.Time
}

// NewOrderService fails with ErrConfiguration when processor credentials are absent.
func NewOrderService(
	cfg *config.Razorpay,
	razorpayClient client.RazorpayClient,
	purchaseTracker PurchaseTracker,
) (OrderService, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, newError(ErrConfiguration, "Payment processor not configured", config.ErrMissingCredentials)
	}

	currency := cfg.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	return &orderServiceImpl{
		razorpayClient:  razorpayClient,
		purchaseTracker: purchaseTracker,
		currency:        currency,
		now:             time.Now,
	}, nil
}

// ToMinorUnits converts a positive whole amount of major units to minor units.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() || !amount.IsInteger() {
		return 0, newError(ErrValidation, "Amount must be a positive integer", nil)
	}
	minor := amount.Mul(minorUnitsPerMajor)
	if !minor.LessThanOrEqual(decimal.NewFromInt(1 << 53)) {
		return 0, newError(ErrValidation, "Amount is too large", nil)
	}
	return minor.IntPart(), nil
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	minor, err := ToMinorUnits(in.Amount)
	if err != nil {
		metrics.OrderFailuresTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	currency := in.Currency
	if currency == "" {
		currency = s.currency
	}

	reserve := in.BoxIndex != nil && in.UserID != ""
	if in.BoxIndex != nil && !model.ValidBoxIndex(*in.BoxIndex) {
		return nil, newError(ErrValidation, "Invalid box index", nil)
	}
	if reserve {
		if err := s.purchaseTracker.EnsureAvailable(ctx, in.UserID, *in.BoxIndex); err != nil {
			metrics.OrderFailuresTotal.WithLabelValues("conflict").Inc()
			return nil, err
		}
	}

	req := &client.CreateOrderRequest{
		Amount:   minor,
		Currency: currency,
		Receipt:  fmt.Sprintf("receipt_%d", s.now().UnixNano()),
	}
	if reserve {
		req.Notes = map[string]string{
			"user_id":   in.UserID,
			"box_index": fmt.Sprint(*in.BoxIndex),
		}
	}

	start := time.Now()
	order, err := s.razorpayClient.CreateOrder(ctx, req)
	metrics.ProcessorRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OrderFailuresTotal.WithLabelValues("upstream").Inc()
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			slog.ErrorContext(ctx, "razorpay rejected order",
				"status", apiErr.StatusCode, "code", apiErr.Code, "description", apiErr.Description, "receipt", req.Receipt)
		} else {
			slog.ErrorContext(ctx, "razorpay order request failed", "error", err, "receipt", req.Receipt)
		}
		return nil, newError(ErrUpstream, "Failed to create payment order", err)
	}

	if reserve {
		if err := s.purchaseTracker.MarkPending(ctx, in.UserID, *in.BoxIndex, order.ID); err != nil {
			return nil, err
		}
	}

	metrics.OrdersCreatedTotal.Inc()
	slog.InfoContext(ctx, "payment order created",
		"order_id", order.ID, "amount", order.Amount, "currency", order.Currency, "receipt", order.Receipt)

	return &Order{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		Status:   order.Status,
	}, nil
}
