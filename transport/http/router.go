package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/herald/ports"
	"github.com/layer-3/herald/service"
	"github.com/rs/zerolog"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	NoncePerSecond float64
	NonceBurst     int
}

// SetupRouter wires the gin router: auth endpoints behind the session
// middleware, the producer ingestion endpoint, and the websocket mount.
func SetupRouter(
	log zerolog.Logger,
	auth *service.AuthService,
	delivery *service.DeliveryService,
	sessions ports.SessionStore,
	gateway http.Handler,
	cfg RouterConfig,
) *gin.Engine {
	if cfg.NoncePerSecond <= 0 {
		cfg.NoncePerSecond = 1
	}
	if cfg.NonceBurst <= 0 {
		cfg.NonceBurst = 5
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))
	router.HandleMethodNotAllowed = true

	handlers := NewHandlers(auth, delivery)

	authGroup := router.Group("/auth")
	authGroup.Use(SessionMiddleware(sessions))
	{
		authGroup.GET("/nonce", NonceRateLimit(cfg.NoncePerSecond, cfg.NonceBurst), handlers.Nonce)
		authGroup.POST("/login", handlers.Login)
		authGroup.POST("/verify", handlers.Verify)
		authGroup.GET("/session", handlers.Session)
		authGroup.DELETE("/session", handlers.Logout)
		authGroup.GET("/ticket", handlers.Ticket)
	}

	router.POST("/notifications", handlers.IngestNotifications)

	router.GET("/realtime/ws", gin.WrapH(gateway))

	return router
}
