package checkout

import (
	"context"
	"fmt"
	"time"

	"adgrid/internal/dto"
	"adgrid/internal/middleware"
	"adgrid/internal/service"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// ServerError is a non-2xx answer from the marketplace API.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// HTTPAPI talks to the marketplace REST API.
type HTTPAPI struct {
	http   *resty.Client
	userID string
}

// NewHTTPAPI authenticates with a bearer token, or with the development
// user header when token is empty.
func NewHTTPAPI(baseURL, token, userID string) *HTTPAPI {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")

	if token != "" {
		httpClient.SetAuthToken(token)
	} else if userID != "" {
		httpClient.SetHeader(middleware.DevUserHeader, userID)
	}

	return &HTTPAPI{http: httpClient, userID: userID}
}

func serverError(resp *resty.Response, message string) error {
	if message == "" {
		message = resp.Status()
	}
	return &ServerError{StatusCode: resp.StatusCode(), Message: message}
}

func (a *HTTPAPI) CreateOrder(ctx context.Context, amount int64, currency string, boxIndex int) (*Order, error) {
	amt := decimal.NewFromInt(amount)

	var out dto.PaymentResponse
	var errResp dto.ErrorResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(&dto.PaymentRequest{Amount: &amt, Currency: currency, BoxIndex: &boxIndex, UserID: a.userID}).
		SetResult(&out).
		SetError(&errResp).
		Post("/api/payment")
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	if resp.IsError() {
		return nil, serverError(resp, errResp.Error)
	}

	return &Order{ID: out.ID, Amount: out.Amount, Currency: out.Currency, Receipt: out.Receipt}, nil
}

func (a *HTTPAPI) Verify(ctx context.Context, confirmation *Confirmation, boxIndex int) error {
	var out dto.VerifyPaymentResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(&dto.VerifyPaymentRequest{
			PaymentID: confirmation.PaymentID,
			OrderID:   confirmation.OrderID,
			Signature: confirmation.Signature,
			UserID:    a.userID,
			BoxIndex:  &boxIndex,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/api/verify-payment")
	if err != nil {
		return fmt.Errorf("verify payment request: %w", err)
	}
	if resp.IsError() || !out.Verified {
		return serverError(resp, out.Error)
	}
	return nil
}

func (a *HTTPAPI) PurchasedBoxes(ctx context.Context) ([]int, error) {
	var out dto.PurchasesResponse
	var errResp dto.ErrorResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errResp).
		Get("/api/purchases")
	if err != nil {
		return nil, fmt.Errorf("list purchases request: %w", err)
	}
	if resp.IsError() {
		return nil, serverError(resp, errResp.Error)
	}
	return out.Boxes, nil
}

func (a *HTTPAPI) Grid(ctx context.Context) ([]service.Box, error) {
	var out []service.Box
	var errResp dto.ErrorResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errResp).
		Get("/api/boxes")
	if err != nil {
		return nil, fmt.Errorf("grid request: %w", err)
	}
	if resp.IsError() {
		return nil, serverError(resp, errResp.Error)
	}
	return out, nil
}

func (a *HTTPAPI) Config(ctx context.Context) (*dto.ClientConfigResponse, error) {
	var out dto.ClientConfigResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/config")
	if err != nil {
		return nil, fmt.Errorf("config request: %w", err)
	}
	if resp.IsError() {
		return nil, serverError(resp, "")
	}
	return &out, nil
}
