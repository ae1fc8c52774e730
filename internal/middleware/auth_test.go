package middleware

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textilelaunch/launchpad/internal/model"
	"github.com/textilelaunch/launchpad/internal/repository"
	"github.com/textilelaunch/launchpad/internal/utils"
)

const testSecret = "middleware-test-secret"

// Exact SQL the repositories issue, for sqlmock's equal matcher.
const (
	sessionQuery = "SELECT id, user_id, token, expires_at FROM sessions WHERE id=? AND expires_at > NOW() LIMIT 1"
	userQuery    = "SELECT id,email,name,role,password,created_at,updated_at FROM users WHERE id=? LIMIT 1"
	apiKeyQuery  = "SELECT user_id FROM app_settings WHERE api_key_hash=? LIMIT 1"
	delSession   = "DELETE FROM sessions WHERE id=?"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Authenticator{
		Secret:   testSecret,
		Env:      "test",
		Users:    repository.NewUserRepo(db),
		Sessions: repository.NewSessionRepo(db),
		Settings: repository.NewSettingsRepo(db),
	}, mock
}

func userRows(id string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "name", "role", "password", "created_at", "updated_at"}).
		AddRow(id, id+"@example.com", "Test User", "user", "$2b$10$hash", now, now)
}

// run sends req through Authenticate and a probe handler that records the
// attached identity.
func run(t *testing.T, a *Authenticator, req *http.Request) (*httptest.ResponseRecorder, *model.User) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var attached *model.User
	h := a.Authenticate()(func(c echo.Context) error {
		attached, _ = c.Get(CtxUser).(*model.User)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, attached
}

func TestAuthenticate_ValidSession(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	mock.ExpectQuery(sessionQuery).WithArgs("sess_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at"}).
			AddRow("sess_1", "usr_1", "stored-token", time.Now().Add(time.Hour)))
	mock.ExpectQuery(userQuery).WithArgs("usr_1").WillReturnRows(userRows("usr_1"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess_1"})

	rec, user := run(t, a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, user)
	assert.Equal(t, "usr_1", user.ID)
	assert.Empty(t, user.Password, "password hash must not reach handlers")
	// Two reads, zero writes on the happy path.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticate_ExpiredSessionRejects(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	mock.ExpectQuery(sessionQuery).WithArgs("sess_dead").WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess_dead"})

	rec, user := run(t, a, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session expired or invalid")
	assert.Nil(t, user)
}

func TestAuthenticate_DeadSessionDoesNotFallThroughToBearer(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	// A perfectly valid bearer token rides along, but the session branch was
	// entered first and its rejection is terminal.
	tok, err := utils.GenerateToken(testSecret, "usr_1", time.Hour)
	require.NoError(t, err)

	mock.ExpectQuery(sessionQuery).WithArgs("sess_dead").WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess_dead"})
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)

	rec, _ := run(t, a, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session expired or invalid")
	assert.NoError(t, mock.ExpectationsWereMet(), "user store must not be consulted")
}

func TestAuthenticate_BearerToken(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	tok, err := utils.GenerateToken(testSecret, "usr_2", time.Hour)
	require.NoError(t, err)
	mock.ExpectQuery(userQuery).WithArgs("usr_2").WillReturnRows(userRows("usr_2"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)

	rec, user := run(t, a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, user)
	assert.Equal(t, "usr_2", user.ID)
}

func TestAuthenticate_InvalidBearerToken(t *testing.T) {
	a, _ := newTestAuthenticator(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not.a.jwt")

	rec, _ := run(t, a, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired token")
}

func TestAuthenticate_ExpiredBearerToken(t *testing.T) {
	a, _ := newTestAuthenticator(t)

	tok, err := utils.GenerateToken(testSecret, "usr_2", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)

	rec, _ := run(t, a, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_LegacyTokenCookie(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	tok, err := utils.GenerateToken(testSecret, "usr_3", time.Hour)
	require.NoError(t, err)
	mock.ExpectQuery(userQuery).WithArgs("usr_3").WillReturnRows(userRows("usr_3"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: LegacyCookieName, Value: tok})

	rec, user := run(t, a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, user)
	assert.Equal(t, "usr_3", user.ID)
}

func TestAuthenticate_TrustedHeaderHit(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	mock.ExpectQuery(userQuery).WithArgs("usr_123").WillReturnRows(userRows("usr_123"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-user-id", "usr_123")

	rec, user := run(t, a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, user)
	assert.Equal(t, "usr_123", user.ID)
	// Exactly one user read; the session store is never touched.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticate_TrustedHeaderMissFallsToNoCredential(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	mock.ExpectQuery(userQuery).WithArgs("usr_ghost").WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-user-id", "usr_ghost")

	rec, _ := run(t, a, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication required")
}

func TestAuthenticate_NoCredential(t *testing.T) {
	a, _ := newTestAuthenticator(t)

	rec, _ := run(t, a, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication required")
}

func TestAuthenticate_OrphanSessionSelfHeals(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	var cleanedSession, cleanedUser string
	a.OnOrphanSession = func(sessionID, userID string) {
		cleanedSession, cleanedUser = sessionID, userID
	}

	mock.ExpectQuery(sessionQuery).WithArgs("sess_orphan").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at"}).
			AddRow("sess_orphan", "usr_gone", "stored-token", time.Now().Add(time.Hour)))
	mock.ExpectQuery(userQuery).WithArgs("usr_gone").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(delSession).WithArgs("sess_orphan").WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess_orphan"})

	rec, _ := run(t, a, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "User not found or session invalid")
	assert.NoError(t, mock.ExpectationsWereMet(), "orphan session must be deleted exactly once")
	assert.Equal(t, "sess_orphan", cleanedSession)
	assert.Equal(t, "usr_gone", cleanedUser)
}

func TestAuthenticate_VanishedUserOnTokenPathDoesNotTouchSessions(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	tok, err := utils.GenerateToken(testSecret, "usr_gone", time.Hour)
	require.NoError(t, err)
	mock.ExpectQuery(userQuery).WithArgs("usr_gone").WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)

	rec, _ := run(t, a, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// No session delete expected: only the session credential self-heals.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticate_StoreFaultCollapsesTo403(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	tok, err := utils.GenerateToken(testSecret, "usr_1", time.Hour)
	require.NoError(t, err)
	mock.ExpectQuery(userQuery).WithArgs("usr_1").WillReturnError(errors.New("connection refused"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)

	rec, _ := run(t, a, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication failed")
}

func TestAuthenticate_APIKey(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	raw := utils.APIKeyPrefix + "deadbeef"
	mock.ExpectQuery(apiKeyQuery).WithArgs(utils.HashAPIKey(raw)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("usr_api"))
	mock.ExpectQuery(userQuery).WithArgs("usr_api").WillReturnRows(userRows("usr_api"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+raw)

	rec, user := run(t, a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, user)
	assert.Equal(t, "usr_api", user.ID)
}

func TestAuthenticate_UnknownAPIKeyFallsThrough(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	raw := utils.APIKeyPrefix + "unknown"
	mock.ExpectQuery(apiKeyQuery).WithArgs(utils.HashAPIKey(raw)).WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+raw)

	// No other credential: the prefixed key is not a parseable JWT, so the
	// bearer strategy rejects it.
	rec, _ := run(t, a, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired token")
}

func TestOptionalAuth_NeverRejects(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	// A store outage on the user lookup is swallowed too.
	tok, err := utils.GenerateToken(testSecret, "usr_1", time.Hour)
	require.NoError(t, err)
	mock.ExpectQuery(userQuery).WithArgs("usr_1").WillReturnError(errors.New("db down"))

	cases := []struct {
		name string
		mut  func(*http.Request)
	}{
		{"no credentials", func(r *http.Request) {}},
		{"malformed bearer", func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer junk") }},
		{"store outage", func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.mut(req)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			h := a.OptionalAuth()(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			require.NoError(t, h(c))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestOptionalAuth_IgnoresSessionCookie(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	// Only a session cookie: the optional variant does not consult the
	// session store and proceeds anonymously.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess_1"})

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var attached any = "unset"
	h := a.OptionalAuth()(func(c echo.Context) error {
		attached = c.Get(CtxUser)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, attached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionalAuth_AttachesUserFromBearer(t *testing.T) {
	a, mock := newTestAuthenticator(t)

	tok, err := utils.GenerateToken(testSecret, "usr_5", time.Hour)
	require.NoError(t, err)
	mock.ExpectQuery(userQuery).WithArgs("usr_5").WillReturnRows(userRows("usr_5"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var user *model.User
	h := a.OptionalAuth()(func(c echo.Context) error {
		user, _ = c.Get(CtxUser).(*model.User)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	require.NotNil(t, user)
	assert.Equal(t, "usr_5", user.ID)
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	t.Run("no user attached", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, RequireAdmin()(next)(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.Set(CtxUser, &model.User{ID: "usr_1", Role: model.RoleUser})
		require.NoError(t, RequireAdmin()(next)(c))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.Set(CtxUser, &model.User{ID: "usr_1", Role: model.RoleAdmin})
		require.NoError(t, RequireAdmin()(next)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
