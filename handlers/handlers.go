package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/miyamoto-labs/easypoly/models"
	"github.com/miyamoto-labs/easypoly/storage"
)

// Handler serves the tracked-trader API.
type Handler struct {
	store storage.TraderStore
}

// NewHandler creates a new handler over the trader store.
func NewHandler(store storage.TraderStore) *Handler {
	return &Handler{store: store}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/api/traders/top", h.GetTopTraders)
	r.GET("/api/traders/rising-stars", h.GetRisingStars)
	r.GET("/api/traders/:address", h.GetTrader)
	r.POST("/api/traders/:address/follow", h.FollowTrader)
	r.GET("/api/signals/recent", h.GetRecentSignals)
}

// GetTopTraders returns the active roster ranked by composite score.
// With ?tiered=true the roster is grouped per bankroll tier instead.
func (h *Handler) GetTopTraders(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	var (
		traders []models.TrackedTrader
		err     error
	)
	if c.Query("tiered") == "true" || c.Query("tiered") == "1" {
		traders, err = h.store.TopTradersByTier(c.Request.Context(), limit)
	} else {
		traders, err = h.store.TopTraders(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load traders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"traders": traders,
		"count":   len(traders),
	})
}

// GetRisingStars returns active traders flagged as rising stars.
func (h *Handler) GetRisingStars(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	traders, err := h.store.RisingStars(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rising stars"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"traders": traders,
		"count":   len(traders),
	})
}

// GetTrader returns one tracked trader by wallet address.
func (h *Handler) GetTrader(c *gin.Context) {
	address := models.NormalizeAddress(c.Param("address"))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet address required"})
		return
	}

	trader, err := h.store.GetTrader(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trader"})
		return
	}
	if trader == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trader not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trader": trader,
	})
}

// FollowTraderRequest is the optional payload for a manual follow.
type FollowTraderRequest struct {
	Alias string `json:"alias"`
}

// FollowTrader adds a wallet to the watch list as a custom follow. The
// copy-signal detector always includes custom follows regardless of score.
func (h *Handler) FollowTrader(c *gin.Context) {
	address := models.NormalizeAddress(c.Param("address"))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet address required"})
		return
	}

	var req FollowTraderRequest
	_ = c.ShouldBindJSON(&req)

	alias := req.Alias
	if alias == "" {
		alias = models.ShortAddress(address)
	}

	id, err := h.store.UpsertTrader(c.Request.Context(), models.TrackedTrader{
		WalletAddress: address,
		Alias:         alias,
		Source:        "custom",
		Active:        true,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to follow trader"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"address": address,
		"alias":   alias,
	})
}

// GetRecentSignals returns the most recently recorded trader trades.
func (h *Handler) GetRecentSignals(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	trades, err := h.store.RecentTraderTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signals": trades,
		"count":   len(trades),
	})
}
