package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the operational endpoints: health, readiness, metrics,
// the on-demand consistency audit and read-only order lookup. The write
// side of the order API is owned by an external caller of the ledger,
// not by this process.
type Handler struct {
	ledger  *service.Ledger
	checker *service.Checker
}

// NewHandler creates the operational HTTP handler.
func NewHandler(ledger *service.Ledger, checker *service.Checker) *Handler {
	return &Handler{ledger: ledger, checker: checker}
}

// SetupRoutes sets up the operational routes.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/audit", h.runAudit)
	router.GET("/orders/:id", h.getOrder)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// runAudit runs every consistency audit and returns the violations.
func (h *Handler) runAudit(c *gin.Context) {
	violations, err := h.checker.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Audit failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"consistent": len(violations) == 0,
		"violations": violations,
	})
}

// getOrder returns an order with its items.
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return
	}

	order, err := h.ledger.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error":   "Failed to get order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, order)
}
