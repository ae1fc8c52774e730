package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/textilelaunch/launchpad/internal/config"
	"github.com/textilelaunch/launchpad/internal/middleware"
	"github.com/textilelaunch/launchpad/internal/model"
	"github.com/textilelaunch/launchpad/internal/queue"
	"github.com/textilelaunch/launchpad/internal/repository"
	queue_publisher "github.com/textilelaunch/launchpad/internal/service"
	"github.com/textilelaunch/launchpad/internal/utils"
)

// AuthHandler bundles dependencies for login, logout and user management.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Sessions *repository.SessionRepo
	Settings *repository.SettingsRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, s *repository.SessionRepo, st *repository.SettingsRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s, Settings: st}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type createUserReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}
type updateUserReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// userPart is the public shape of a user: everything except the password.
type userPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// Login verifies credentials, issues a signed token, stores a session row
// and sets the sessionId cookie. The token travels only inside the
// httpOnly cookie's session row, never in the response body.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Same response as a wrong password so the endpoint does not
			// reveal which emails exist.
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	valid := false
	if utils.IsBcryptHash(u.Password) {
		valid = utils.VerifyPassword(u.Password, req.Password)
	} else {
		// Legacy row imported before hashing: compare plaintext and, if it
		// matches, hash it in place so the plaintext disappears.
		valid = u.Password == req.Password
		if valid {
			if hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost); err == nil {
				_ = h.Users.UpgradePassword(ctx, u.ID, hash)
			}
		}
	}
	if !valid {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
	}

	token, err := utils.GenerateToken(h.Cfg.JWTSecret, u.ID, h.Cfg.JWTExpiresIn)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to generate authentication token"})
	}

	sessionID, err := newSessionID()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create session"})
	}
	expiresAt := time.Now().UTC().Add(h.Cfg.JWTExpiresIn)
	if err := h.Sessions.Create(ctx, sessionID, u.ID, token, expiresAt); err != nil {
		c.Logger().Errorf("store session failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create session"})
	}

	c.SetCookie(h.sessionCookie(sessionID, int(h.Cfg.JWTExpiresIn/time.Second)))

	publishAuthEvent(queue.AuthEvent{
		Type:      queue.EventLogin,
		UserID:    u.ID,
		Email:     u.Email,
		SessionID: sessionID,
		IP:        c.RealIP(),
	})

	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}

// Logout deletes the caller's session row and clears both the session
// cookie and the legacy token cookie. Runs behind Authenticate.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var sessionID string
	if ck, err := c.Cookie(middleware.SessionCookieName); err == nil {
		sessionID = ck.Value
	}
	if sessionID != "" {
		if err := h.Sessions.Delete(ctx, sessionID); err != nil {
			c.Logger().Errorf("delete session failed: %v", err)
		}
	}

	// Expire both cookies client-side regardless of store state.
	c.SetCookie(h.sessionCookie("", -1))
	legacy := h.sessionCookie("", -1)
	legacy.Name = middleware.LegacyCookieName
	c.SetCookie(legacy)

	if userID, ok := c.Get(middleware.CtxUserID).(string); ok {
		publishAuthEvent(queue.AuthEvent{
			Type:      queue.EventLogout,
			UserID:    userID,
			SessionID: sessionID,
			IP:        c.RealIP(),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Logged out successfully"})
}

// Me returns the authenticated user attached by the middleware.
func (h *AuthHandler) Me(c echo.Context) error {
	user, ok := c.Get(middleware.CtxUser).(*model.User)
	if !ok || user == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(*user)})
}

// ListUsers returns all users (admin only).
func (h *AuthHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	parts := make([]userPart, 0, len(users))
	for _, u := range users {
		parts = append(parts, toUserPart(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": parts})
}

// CreateUser adds a user plus their default settings row (admin only).
func (h *AuthHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email, password, and name are required"})
	}
	role := req.Role
	if role != model.RoleAdmin {
		role = model.RoleUser
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Email, req.Password, req.Name, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "Email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	if err := h.Settings.CreateDefaults(ctx, id, "TextileLaunch Store"); err != nil {
		c.Logger().Errorf("create default settings failed: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"user": userPart{ID: id, Email: strings.ToLower(strings.TrimSpace(req.Email)), Name: req.Name, Role: role}})
}

// UpdateUser modifies a profile. Admins may edit anyone; users only
// themselves, and only admins may change roles.
func (h *AuthHandler) UpdateUser(c echo.Context) error {
	id := c.Param("id")
	actor, ok := c.Get(middleware.CtxUser).(*model.User)
	if !ok || actor == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}
	if !actor.IsAdmin() && actor.ID != id {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "You can only update your own profile"})
	}

	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Role != "" && !actor.IsAdmin() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Only admin can change user role"})
	}

	var upd repository.UserUpdate
	if req.Email != "" {
		upd.Email = &req.Email
	}
	if req.Name != "" {
		upd.Name = &req.Name
	}
	if req.Role != "" && actor.IsAdmin() {
		upd.Role = &req.Role
	}
	if req.Password != "" {
		hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
		}
		upd.Password = &hash
	}
	if upd.Email == nil && upd.Name == nil && upd.Role == nil && upd.Password == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No fields to update"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Update(ctx, id, upd); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update user failed"})
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}

// DeleteUser removes a user and, through the repository, their sessions
// (admin only; self-deletion refused).
func (h *AuthHandler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	actor, ok := c.Get(middleware.CtxUser).(*model.User)
	if !ok || actor == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}
	if actor.ID == id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "You cannot delete your own account"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete user failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// sessionCookie builds the sessionId cookie with the configured transport
// attributes. maxAge < 0 expires the cookie.
func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: parseSameSite(h.Cfg.CookieSameSite),
	}
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}

// newSessionID produces an opaque session id: a timestamp plus 16 random
// bytes. The random part is the secret; the prefix just keeps rows legible.
func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("sess_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf)), nil
}

// publishAuthEvent fires an audit event without blocking the request. The
// publisher logs its own failures; a broker outage never affects auth.
func publishAuthEvent(ev queue.AuthEvent) {
	ev.At = time.Now().UTC().Format(time.RFC3339)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue_publisher.PublishAuthEvent(ctx, ev)
	}()
}
