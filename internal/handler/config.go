package handler

import (
	"net/http"

	"adgrid/internal/dto"
	"adgrid/internal/model"

	"github.com/labstack/echo/v4"
)

type ConfigHandler struct {
	resp dto.ClientConfigResponse
}

func NewConfigHandler(publicKeyID, currency string, unitPrice int64) *ConfigHandler {
	return &ConfigHandler{resp: dto.ClientConfigResponse{
		KeyID:     publicKeyID,
		Currency:  currency,
		BoxCount:  model.BoxCount,
		UnitPrice: unitPrice,
	}}
}

// ClientConfig exposes what the browser needs to open the hosted checkout.
func (h *ConfigHandler) ClientConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.resp)
}
