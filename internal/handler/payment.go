package handler

import (
	"io"
	"log/slog"
	"net/http"

	"adgrid/internal/dto"
	"adgrid/internal/middleware"
	"adgrid/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	orderService   service.OrderService
	paymentService service.PaymentService
	exposeDetails  bool
}

func NewPaymentHandler(orderService service.OrderService, paymentService service.PaymentService, exposeDetails bool) *PaymentHandler {
	return &PaymentHandler{
		orderService:   orderService,
		paymentService: paymentService,
		exposeDetails:  exposeDetails,
	}
}

func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, &dto.ErrorResponse{Error: "Amount must be a positive integer"})
	}
	if req.Amount == nil {
		return c.JSON(http.StatusBadRequest, &dto.ErrorResponse{Error: "Amount is required"})
	}

	userID := middleware.UserID(c)
	if userID == "" {
		userID = req.UserID
	} else if req.UserID != "" && req.UserID != userID {
		return c.JSON(http.StatusForbidden, &dto.ErrorResponse{Error: "User mismatch"})
	}

	order, err := h.orderService.CreateOrder(ctx, service.CreateOrderInput{
		Amount:   *req.Amount,
		Currency: req.Currency,
		UserID:   userID,
		BoxIndex: req.BoxIndex,
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "create order", "error", err)
		}
		return c.JSON(status, &dto.ErrorResponse{
			Error:   service.PublicMessage(err, "Failed to create payment order"),
			Details: details(err, status, h.exposeDetails),
		})
	}

	return c.JSON(http.StatusOK, &dto.PaymentResponse{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		Status:   order.Status,
	})
}

func (h *PaymentHandler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, &dto.VerifyPaymentResponse{Error: "Missing fields"})
	}

	if authUser := middleware.UserID(c); authUser != "" {
		if req.UserID != "" && authUser != req.UserID {
			slog.WarnContext(ctx, "verification for another user", "security_event", true,
				"auth_user", authUser, "user_id", req.UserID)
			return c.JSON(http.StatusForbidden, &dto.VerifyPaymentResponse{Error: "User mismatch"})
		}
		req.UserID = authUser
	}

	_, err := h.paymentService.VerifyAndAuthorize(ctx, service.VerifyInput{
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Signature: req.Signature,
		UserID:    req.UserID,
		BoxIndex:  req.BoxIndex,
	})
	if err != nil {
		status := statusFor(err)
		message := service.PublicMessage(err, "Internal server error")
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "verify payment", "error", err)
			message = "Internal server error"
		}
		return c.JSON(status, &dto.VerifyPaymentResponse{
			Verified: false,
			Error:    message,
			Details:  details(err, status, h.exposeDetails),
		})
	}

	return c.JSON(http.StatusOK, &dto.VerifyPaymentResponse{Verified: true})
}

func (h *PaymentHandler) RazorpayWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.paymentService.HandleWebhook(ctx, c.Request().Header, body); err != nil {
		status := statusFor(err)
		slog.ErrorContext(ctx, "handle webhook", "status", status, "error", err)
		return c.JSON(status, &dto.ErrorResponse{Error: service.PublicMessage(err, "Webhook processing failed")})
	}

	return c.NoContent(http.StatusOK)
}
