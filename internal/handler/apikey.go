package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/textilelaunch/launchpad/internal/middleware"
	"github.com/textilelaunch/launchpad/internal/repository"
	"github.com/textilelaunch/launchpad/internal/utils"
)

// APIKeyHandler issues and revokes programmatic API keys. Each user holds
// at most one key; only its SHA-256 hash is stored, so the raw key appears
// in exactly one response and cannot be retrieved again.
type APIKeyHandler struct {
	Settings *repository.SettingsRepo
}

func NewAPIKeyHandler(s *repository.SettingsRepo) *APIKeyHandler {
	return &APIKeyHandler{Settings: s}
}

// Generate mints a fresh key for the caller, replacing any existing one.
func (h *APIKeyHandler) Generate(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)

	raw, err := utils.NewAPIKey()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "key generation failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Settings.SetAPIKeyHash(ctx, userID, utils.HashAPIKey(raw)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"api_key": raw,
		"note":    "Store this key now; it will not be shown again.",
	})
}

// Revoke clears the caller's key.
func (h *APIKeyHandler) Revoke(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Settings.ClearAPIKey(ctx, userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
