// Package webserver owns the echo instance: middleware, JWT authentication,
// metrics and the route registration helpers used by the API handlers.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo-contrib/echoprometheus"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/account"
	"github.com/talkincode/pizzeria/internal/app"
	"github.com/talkincode/pizzeria/internal/apperr"
)

const (
	ApiPrefix     = "/api/v1"
	AppContextKey = "appctx"
	userKey       = "user"
	actorKey      = "actor"
)

type WebServer struct {
	root    *echo.Echo
	appCtx  app.AppContext
	jwtMW   echo.MiddlewareFunc
	actorMW echo.MiddlewareFunc
}

var server *WebServer

// Init builds the global server. Routes are registered afterwards with the
// Api* helpers.
func Init(appCtx app.AppContext) {
	server = NewWebServer(appCtx)
}

func NewWebServer(appCtx app.AppContext) *WebServer {
	cfg := appCtx.Config()
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.System.Debug {
		e.Debug = true
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.WARN)
	}
	e.JSONSerializer = &jsoniterSerializer{}
	e.Validator = NewValidator()
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			return next(c)
		}
	})

	if cfg.Web.Metrics {
		// a private registry lets tests build several servers in one process
		registry := prometheus.NewRegistry()
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Namespace:  "pizzeria",
			Registerer: registry,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics"
			},
		}))
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: registry}))
	}
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "time": time.Now()})
	})

	jwtMW := echojwt.WithConfig(echojwt.Config{
		SigningKey:    appCtx.Tokens().Secret(),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		ContextKey:    userKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(account.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthorized(c, "authentication credentials were not provided or are invalid")
		},
	})

	return &WebServer{root: e, appCtx: appCtx, jwtMW: jwtMW, actorMW: resolveActor(appCtx)}
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"error": map[string]interface{}{"code": "UNAUTHENTICATED", "message": message},
	})
}

// resolveActor turns verified claims into the current identity of the user.
func resolveActor(appCtx app.AppContext) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok, ok := c.Get(userKey).(*jwt.Token)
			if !ok || tok == nil {
				return unauthorized(c, "authentication credentials were not provided or are invalid")
			}
			claims, ok := tok.Claims.(*account.Claims)
			if !ok {
				return unauthorized(c, "authentication credentials were not provided or are invalid")
			}
			actor, err := appCtx.Accounts().Actor(c.Request().Context(), claims)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindUnauthenticated {
					return unauthorized(c, err.Error())
				}
				return err
			}
			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// Echo exposes the underlying router, mainly for tests.
func Echo() *echo.Echo {
	return server.root
}

func Start() error {
	cfg := server.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	s := &http.Server{
		Addr:         addr,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
	}
	zap.S().Infof("Web server listening on %s", addr)
	err := server.root.StartServer(s)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func Shutdown(ctx context.Context) error {
	return server.root.Shutdown(ctx)
}

func protected(m []echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return append([]echo.MiddlewareFunc{server.jwtMW, server.actorMW}, m...)
}

// ApiGET registers an authenticated GET route under ApiPrefix.
func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.root.GET(ApiPrefix+path, h, protected(m)...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.root.POST(ApiPrefix+path, h, protected(m)...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.root.PUT(ApiPrefix+path, h, protected(m)...)
}

func ApiPATCH(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.root.PATCH(ApiPrefix+path, h, protected(m)...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.root.DELETE(ApiPrefix+path, h, protected(m)...)
}

// PublicPOST registers an unauthenticated POST route under ApiPrefix.
func PublicPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.root.POST(ApiPrefix+path, h, m...)
}

// ActorFromContext returns the authenticated identity, nil on public routes.
func ActorFromContext(c echo.Context) *access.Actor {
	actor, _ := c.Get(actorKey).(*access.Actor)
	return actor
}

func GetAppContext(c echo.Context) app.AppContext {
	appCtx, _ := c.Get(AppContextKey).(app.AppContext)
	return appCtx
}
