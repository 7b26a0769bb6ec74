package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"thirdcoast.systems/anyvid/cmd/web/handlers/api/media_api"
	settingsapi "thirdcoast.systems/anyvid/cmd/web/handlers/api/settings_api"
	"thirdcoast.systems/anyvid/cmd/web/handlers/common"
	"thirdcoast.systems/anyvid/cmd/web/internal/ratelimit"
	"thirdcoast.systems/anyvid/internal/config"
)

const serviceName = "anyvid-api"

// exposedHeaders are readable by browser clients on cross-origin responses.
var exposedHeaders = []string{
	"Content-Disposition",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
}

// Services are the backends the HTTP handlers call into.
type Services struct {
	Resolver media_api.Resolver
	Streams  media_api.StreamOpener
	Muxer    media_api.MuxStarter
	Cookies  settingsapi.CookieSaver
}

type Webserver struct {
	*echo.Echo
	conf     *config.Config
	services Services
	limiter  *ratelimit.Limiter
}

func NewWebserver(conf *config.Config, services Services) (*Webserver, error) {
	e := echo.New()

	webserver := &Webserver{
		Echo:     e,
		conf:     conf,
		services: services,
		limiter:  ratelimit.New(conf.RateLimitRPM),
	}

	if limit := webserver.limiter.Limit(); limit > 0 {
		slog.Info("API rate limiting enabled", "per_minute", limit)
	} else {
		slog.Info("RATE_LIMIT_RPM is 0; API rate limiting disabled")
	}

	if err := webserver.registerRoutes(); err != nil {
		return nil, err
	}

	if err := webserver.setupMiddleware(); err != nil {
		return nil, err
	}

	return webserver, nil
}

func (s *Webserver) setupMiddleware() error {
	s.HideBanner = true
	s.HidePort = true
	s.HTTPErrorHandler = common.HTTPErrorHandler
	s.Validator = common.NewRequestValidator()

	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", redactQuery(v.URI),
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))
	s.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.conf.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
		ExposeHeaders:    exposedHeaders,
		// AllowHeaders left empty reflects whatever the preflight asks for.
	}))
	s.Use(s.limiter.Middleware())
	s.Use(middleware.BodyLimit("2M"))
	s.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/download"
		},
	}))

	return nil
}

// redactQuery drops query strings from logged URIs; download URLs carry
// signed upstream links.
func redactQuery(uri string) string {
	if path, _, ok := strings.Cut(uri, "?"); ok {
		return path + "?[redacted]"
	}
	return uri
}

func (s *Webserver) registerRoutes() error {
	apiGroup := s.Group("/api")
	apiGroup.POST("/info", media_api.HandleInfo(s.services.Resolver, s.conf.MaxURLLength))
	apiGroup.GET("/download", media_api.HandleDownload(s.services.Streams, s.services.Muxer, s.conf.MaxDownloadURLLength))
	apiGroup.POST("/cookies", settingsapi.HandleUpdateCookies(s.services.Cookies))

	// Health check
	s.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
	})

	return nil
}
