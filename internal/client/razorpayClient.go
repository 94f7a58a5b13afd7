package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"adgrid/internal/config"
	"adgrid/internal/model"

	"github.com/go-resty/resty/v2"
)

type RazorpayClient interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.RazorpayOrder, error)
}

type CreateOrderRequest struct {
	Amount   int64             `json:"amount"` // minor units
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// APIError is a non-2xx answer from the Razorpay API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay error %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

type razorpayClientImpl struct {
	http *resty.Client
}

func NewRazorpayClient(cfg *config.Razorpay) RazorpayClient {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseApiURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")

	return &razorpayClientImpl{
		http: httpClient,
	}
}

func (c *razorpayClientImpl) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.RazorpayOrder, error) {
	var order model.RazorpayOrder
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&order).
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("razorpay create order request: %w", err)
	}

	if resp.IsError() {
		return nil, apiError(resp)
	}

	if order.ID == "" {
		return nil, fmt.Errorf("razorpay create order: empty order id in response")
	}

	return &order, nil
}

func apiError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}

	var body model.RazorpayError
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Description = body.Error.Description
	}
	if apiErr.Description == "" {
		apiErr.Description = string(resp.Body())
	}

	return apiErr
}
