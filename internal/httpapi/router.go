// Package httpapi exposes the wire protocol from spec §6 as gin routes,
// grounded in order_service/main.go's router setup (gin.New + Recovery +
// CORS + logging middleware, /health, grouped /api/v1 routes) generalized
// from its order-only surface to searchOffers/acceptOffer/customizeOrder/
// startPayment/confirmPayment/getOrder/modifyOrder. Admin rule-authoring
// routes, JWT auth, and analytics queries are out of scope (spec §1).
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"iaros/retailing-engine/internal/errs"
	"iaros/retailing-engine/internal/hold"
	"iaros/retailing-engine/internal/offer"
	"iaros/retailing-engine/internal/order"
)

// Handler wires the component set the wire protocol needs.
type Handler struct {
	generator *offer.Generator
	offers    *offer.Store
	holds     *hold.Manager
	orders    *order.Engine
	ordersDB  *order.Store
	log       *zap.Logger
}

func NewHandler(generator *offer.Generator, offers *offer.Store, holds *hold.Manager, orders *order.Engine, ordersDB *order.Store, log *zap.Logger) *Handler {
	return &Handler{generator: generator, offers: offers, holds: holds, orders: orders, ordersDB: ordersDB, log: log}
}

// NewRouter builds the gin.Engine the way order_service/main.go's
// initHTTPServer does: gin.New, Recovery, CORS, request logging.
func NewRouter(h *Handler, environment string, log *zap.Logger) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(log))

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/offers/search", h.SearchOffers)
		v1.POST("/offers/:offer_id/accept", h.AcceptOffer)
		v1.GET("/orders/:order_id", h.GetOrder)
		v1.PUT("/orders/:order_id/customize", h.CustomizeOrder)
		v1.POST("/orders/:order_id/payment/start", h.StartPayment)
		v1.POST("/orders/:order_id/payment/confirm", h.ConfirmPayment)
		v1.PUT("/orders/:order_id/modify", h.ModifyOrder)
	}
	return router
}

func principalID(c *gin.Context) string {
	// Authentication strength is a collaborator concern (spec §6); the
	// core only reads the already-verified subject claim off the context
	// set by whatever upstream auth layer is deployed in front of it.
	if v, ok := c.Get("principal_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func writeError(c *gin.Context, err error) {
	if ae, ok := err.(*errs.Error); ok {
		c.JSON(errs.HTTPStatus(ae.Kind), gin.H{"error": ae.Kind, "message": ae.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": errs.KindInternal, "message": err.Error()})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "retailing-engine",
		"timestamp": time.Now().UTC(),
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func loggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
