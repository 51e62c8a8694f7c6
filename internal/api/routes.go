package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mhire/liveavatar/internal/assets"
	"github.com/mhire/liveavatar/internal/metrics"
	"github.com/mhire/liveavatar/internal/websocket"
)

const (
	serviceName   = "liveavatar"
	healthMessage = "AI-powered Live Video Conferencing system is running and healthy"
	bodyLimit     = "64M"
)

// RouteOptions are the configuration-driven parts of the routing table
type RouteOptions struct {
	// Prefix is the API prefix, e.g. "/api/v1"
	Prefix   string
	Version  string
	AudioDir string
	VideoDir string
}

// InitMiddleware installs the request pipeline shared by every route
func InitMiddleware(e *echo.Echo, h *Handler, m *metrics.Metrics, logger *zap.Logger) {
	e.HideBanner = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = h.ErrorHandler

	e.Use(StartTimer())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remoteIP", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("Request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(m.Middleware())
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, h *Handler, hub *websocket.Hub, m *metrics.Metrics, opts RouteOptions, logger *zap.Logger) {
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, healthMessage)
	})

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: serviceName,
			Version: opts.Version,
		})
	})

	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})

	e.Static(assets.AudioMount, opts.AudioDir)
	e.Static(assets.VideoMount, opts.VideoDir)

	v := e.Group(opts.Prefix)

	audio := v.Group("/audio")
	audio.POST("/transcribe", h.Transcribe)
	audio.POST("/speak", h.Speak)
	audio.POST("/upload", h.Upload)

	video := v.Group("/video")
	video.POST("/generate", h.GenerateVideo)
	video.GET("/stream/:video_id", h.StreamVideo)

	conversation := v.Group("/conversation")
	conversation.POST("/reply", h.Reply)
}
