package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/textilelaunch/launchpad/internal/crypto"
	"github.com/textilelaunch/launchpad/internal/middleware"
	"github.com/textilelaunch/launchpad/internal/model"
	"github.com/textilelaunch/launchpad/internal/repository"
)

// launchTokenTTL bounds the window between minting a launch token and the
// browser redeeming it.
const launchTokenTTL = 2 * time.Minute

// IntegrationHandler manages affiliate portal connections. Credentials are
// run through the credential cipher before they reach the repository, so
// the database only ever holds base64 AES-GCM blobs.
type IntegrationHandler struct {
	Affiliates *repository.AffiliateRepo
	Cipher     *crypto.Cipher
}

func NewIntegrationHandler(a *repository.AffiliateRepo, c *crypto.Cipher) *IntegrationHandler {
	return &IntegrationHandler{Affiliates: a, Cipher: c}
}

type affiliateReq struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LoginURL string `json:"login_url"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type affiliatePart struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LoginURL  string    `json:"login_url"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the caller's connections without any credential material.
func (h *IntegrationHandler) List(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	conns, err := h.Affiliates.ListConnections(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	parts := make([]affiliatePart, 0, len(conns))
	for _, cn := range conns {
		parts = append(parts, affiliatePart{ID: cn.ID, Name: cn.Name, LoginURL: cn.LoginURL, CreatedAt: cn.CreatedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"connections": parts})
}

// Save creates or updates a connection, encrypting the submitted email and
// password before they are stored.
func (h *IntegrationHandler) Save(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)

	var req affiliateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Name == "" || req.LoginURL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Name and login_url are required"})
	}

	emailEnc, err := h.Cipher.Encrypt(req.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encrypt failed"})
	}
	passEnc, err := h.Cipher.Encrypt(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encrypt failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	conn := model.AffiliateConnection{
		ID:                req.ID,
		UserID:            userID,
		Name:              req.Name,
		LoginURL:          req.LoginURL,
		EmailEncrypted:    emailEnc,
		PasswordEncrypted: passEnc,
	}

	if req.ID != "" {
		exists, err := h.Affiliates.Exists(ctx, req.ID, userID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if exists {
			if err := h.Affiliates.Update(ctx, conn); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save failed"})
			}
			return c.JSON(http.StatusOK, echo.Map{"id": req.ID})
		}
	}

	conn.ID = "aff_" + uuid.NewString()
	if err := h.Affiliates.Create(ctx, conn); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": conn.ID})
}

// Delete removes a connection owned by the caller.
func (h *IntegrationHandler) Delete(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Affiliates.Delete(ctx, c.Param("id"), userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Launch mints a single-use token for a connection and returns the URL the
// browser should open. The credentials themselves stay encrypted until the
// token is redeemed.
func (h *IntegrationHandler) Launch(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)
	connID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.Affiliates.Exists(ctx, connID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !exists {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Connection not found"})
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	token := hex.EncodeToString(buf)

	if err := h.Affiliates.CreateLaunchToken(ctx, token, userID, connID, time.Now().UTC().Add(launchTokenTTL)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save failed"})
	}

	base := os.Getenv("PUBLIC_BASE_URL")
	if base == "" {
		base = "http://" + c.Request().Host
	}
	return c.JSON(http.StatusOK, echo.Map{
		"launch_url": base + "/v1/integrations/affiliate/launch?token=" + token,
		"expires_in": int(launchTokenTTL / time.Second),
	})
}

// Redeem consumes a launch token and reveals the decrypted credentials
// exactly once. The route is public: the token is the credential. A cipher
// integrity failure is surfaced as an error, never as empty credentials.
func (h *IntegrationHandler) Redeem(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	conn, err := h.Affiliates.ConsumeLaunchToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	email, err := h.Cipher.Decrypt(conn.EmailEncrypted)
	if err != nil {
		c.Logger().Errorf("decrypt affiliate email failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "credential decryption failed"})
	}
	password, err := h.Cipher.Decrypt(conn.PasswordEncrypted)
	if err != nil {
		c.Logger().Errorf("decrypt affiliate password failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "credential decryption failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"login_url": conn.LoginURL,
		"email":     email,
		"password":  password,
	})
}
