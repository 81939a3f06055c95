package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/Domenick1991/pickupslots/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

// SlotHandler serves the shopper-facing slot picker and hold endpoints.
type SlotHandler struct {
	service reservation.UseCase
}

type holdRequest struct {
	Date       string  `json:"date" binding:"required"`
	Time       string  `json:"time" binding:"required"`
	SessionID  string  `json:"session_id" binding:"required"`
	ProductIDs []int64 `json:"product_ids"`
}

type releaseRequest struct {
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

type finalCheckRequest struct {
	Date               string  `json:"date" binding:"required"`
	Time               string  `json:"time" binding:"required"`
	SessionID          string  `json:"session_id" binding:"required"`
	IsUserOwnSelection bool    `json:"is_user_own_selection"`
	ProductIDs         []int64 `json:"product_ids"`
}

type holdResponse struct {
	Success   bool          `json:"success"`
	ExpiresAt string        `json:"expires_at,omitempty"`
	Reason    domain.Reason `json:"reason,omitempty"`
	Message   string        `json:"message,omitempty"`
}

func NewSlotHandler(service reservation.UseCase) *SlotHandler {
	return &SlotHandler{service: service}
}

// Register mounts the routes. limit wraps the routes that claim capacity.
func (h *SlotHandler) Register(router *gin.RouterGroup, limit gin.HandlerFunc) {
	router.GET("/availability", h.availability)
	router.GET("/slots/:date/:time/check", h.check)
	router.POST("/holds", limit, h.hold)
	router.DELETE("/holds", h.release)
	router.POST("/checkout/check", h.finalCheck)
}

func (h *SlotHandler) availability(c *gin.Context) {
	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}

	slots, err := h.service.Availability(c.Request.Context(), from, to, c.Query("category"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (h *SlotHandler) check(c *gin.Context) {
	key, err := domain.NewSlotKey(c.Param("date"), c.Param("time"))
	if err != nil {
		writeError(c, err)
		return
	}

	productIDs, err := parseProductIDs(c.Query("product_ids"))
	if err != nil {
		writeError(c, err)
		return
	}

	avail, err := h.service.Check(c.Request.Context(), key, c.Query("session_id"), productIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

func (h *SlotHandler) hold(c *gin.Context) {
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := domain.NewSlotKey(req.Date, req.Time)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.service.Hold(c.Request.Context(), key, req.SessionID, req.ProductIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	if !res.Success {
		c.JSON(http.StatusOK, holdResponse{Reason: res.Reason, Message: res.Reason.Message()})
		return
	}
	c.JSON(http.StatusOK, holdResponse{Success: true, ExpiresAt: res.ExpiresAt.Format(time.RFC3339)})
}

func (h *SlotHandler) release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := domain.NewSlotKey(req.Date, req.Time)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.service.Release(c.Request.Context(), key, req.SessionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SlotHandler) finalCheck(c *gin.Context) {
	var req finalCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := domain.NewSlotKey(req.Date, req.Time)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.service.CheckFinal(c.Request.Context(), key, req.SessionID, req.IsUserOwnSelection, req.ProductIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// parseProductIDs reads a comma separated id list.
func parseProductIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, domain.ErrInvalidProductID
		}
		ids = append(ids, id)
	}
	return ids, nil
}
