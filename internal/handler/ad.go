package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"adgrid/internal/dto"
	"adgrid/internal/middleware"
	"adgrid/internal/model"
	"adgrid/internal/service"
	"adgrid/internal/storage"

	"github.com/labstack/echo/v4"
)

type AdHandler struct {
	adService       service.AdService
	purchaseTracker service.PurchaseTracker
	imageStore      storage.ImageStore
}

func NewAdHandler(adService service.AdService, purchaseTracker service.PurchaseTracker, imageStore storage.ImageStore) *AdHandler {
	return &AdHandler{
		adService:       adService,
		purchaseTracker: purchaseTracker,
		imageStore:      imageStore,
	}
}

func errorJSON(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
		return c.JSON(status, &dto.ErrorResponse{Error: "Internal server error"})
	}
	return c.JSON(status, &dto.ErrorResponse{Error: service.PublicMessage(err, http.StatusText(status))})
}

func (h *AdHandler) Grid(c echo.Context) error {
	grid, err := h.adService.Grid(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, grid)
}

func (h *AdHandler) ListAds(c echo.Context) error {
	ads, err := h.adService.List(c.Request().Context(), middleware.UserID(c), c.QueryParam("q"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, ads)
}

func (h *AdHandler) SubmitAd(c echo.Context) error {
	var req dto.SubmitAdRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, &dto.ErrorResponse{Error: "Invalid request body"})
	}

	ad, err := h.adService.Submit(c.Request().Context(), middleware.UserID(c), service.SubmitAdInput{
		ID:          req.ID,
		BoxIndex:    req.BoxIndex,
		Heading:     req.Heading,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, ad)
}

func (h *AdHandler) DeleteAd(c echo.Context) error {
	if err := h.adService.Delete(c.Request().Context(), middleware.UserID(c), c.Param("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdHandler) UploadImage(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, &dto.ErrorResponse{Error: "image file is required"})
	}
	if file.Size > storage.MaxImageSize {
		return c.JSON(http.StatusRequestEntityTooLarge, &dto.ErrorResponse{Error: "Image is too large"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, &dto.ErrorResponse{Error: "unreadable image file"})
	}
	defer src.Close()

	url, err := h.imageStore.Save(c.Request().Context(), middleware.UserID(c), file.Filename, file.Header.Get(echo.HeaderContentType), src)
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return c.JSON(http.StatusUnsupportedMediaType, &dto.ErrorResponse{Error: "Unsupported image type"})
	case errors.Is(err, storage.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, &dto.ErrorResponse{Error: "Image is too large"})
	case err != nil:
		slog.ErrorContext(c.Request().Context(), "save image", "error", err)
		return c.JSON(http.StatusInternalServerError, &dto.ErrorResponse{Error: "Failed to upload image"})
	}

	return c.JSON(http.StatusOK, &dto.UploadResponse{URL: url})
}

func (h *AdHandler) PurchasedBoxes(c echo.Context) error {
	boxes, err := h.purchaseTracker.PurchasedBoxes(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, &dto.PurchasesResponse{Boxes: boxes})
}

func (h *AdHandler) PurchaseStatus(c echo.Context) error {
	box, err := strconv.Atoi(c.Param("box"))
	if err != nil || !model.ValidBoxIndex(box) {
		return c.JSON(http.StatusBadRequest, &dto.ErrorResponse{Error: "Invalid box index"})
	}

	status, err := h.purchaseTracker.GetPurchaseStatus(c.Request().Context(), middleware.UserID(c), box)
	if err != nil {
		return errorJSON(c, err)
	}
	if status == nil {
		return c.JSON(http.StatusNotFound, &dto.ErrorResponse{Error: "No purchase for this box"})
	}
	return c.JSON(http.StatusOK, status)
}
