package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/textilelaunch/launchpad/internal/handler"    // handlers that implement business logic
	"github.com/textilelaunch/launchpad/internal/middleware" // authentication and rate-limit middleware
)

// Deps carries everything route registration needs: the handlers, the
// authenticator whose middleware guards private routes, and the limiter
// applied to login.
type Deps struct {
	Auth         *handler.AuthHandler
	Integrations *handler.IntegrationHandler
	APIKeys      *handler.APIKeyHandler
	Authn        *middleware.Authenticator
	LoginLimiter echo.MiddlewareFunc
}

// Register wires every route on the provided Echo instance.
//
// Layout:
//
//	/healthz                               – public health check
//	/v1/auth/login                         – public, rate limited
//	/v1/auth/logout, /me, /users...        – behind Authenticate
//	/v1/settings/api-key                   – behind Authenticate
//	/v1/integrations/affiliate...          – behind Authenticate
//	/v1/integrations/affiliate/launch      – public (the token is the credential)
func Register(e *echo.Echo, d Deps) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Login stands alone: it is the one credential-issuing route, so it is
	// public and carries the brute-force limiter.
	login := e.Group("/v1/auth")
	login.POST("/login", d.Auth.Login, d.LoginLimiter)

	// Everything else under /v1/auth requires an authenticated caller.
	auth := e.Group("/v1/auth")
	auth.Use(d.Authn.Authenticate())
	auth.POST("/logout", d.Auth.Logout)
	auth.GET("/me", d.Auth.Me)
	auth.GET("/users", d.Auth.ListUsers, middleware.RequireAdmin())
	auth.POST("/users", d.Auth.CreateUser, middleware.RequireAdmin())
	auth.PUT("/users/:id", d.Auth.UpdateUser) // admin-or-self enforced in the handler
	auth.DELETE("/users/:id", d.Auth.DeleteUser, middleware.RequireAdmin())

	// Programmatic API key management.
	settings := e.Group("/v1/settings")
	settings.Use(d.Authn.Authenticate())
	settings.POST("/api-key", d.APIKeys.Generate)
	settings.DELETE("/api-key", d.APIKeys.Revoke)

	// Affiliate integrations. The launch redemption endpoint is public and
	// registered before the group middleware: the browser that opens the
	// launch URL has no session, the single-use token authorizes it.
	e.GET("/v1/integrations/affiliate/launch", d.Integrations.Redeem)

	integ := e.Group("/v1/integrations")
	integ.Use(d.Authn.Authenticate())
	integ.GET("/affiliate", d.Integrations.List)
	integ.POST("/affiliate", d.Integrations.Save)
	integ.DELETE("/affiliate/:id", d.Integrations.Delete)
	integ.POST("/affiliate/:id/launch", d.Integrations.Launch)
}
