package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/Domenick1991/pickupslots/internal/export"
	"github.com/Domenick1991/pickupslots/internal/service/reclaimer"
	"github.com/Domenick1991/pickupslots/internal/service/reservation"
	"github.com/Domenick1991/pickupslots/internal/service/slots"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler serves slot management for shop staff.
type AdminHandler struct {
	slots        slots.UseCase
	reservations reservation.UseCase
	orders       reclaimer.UseCase
}

type targetRequest struct {
	From     string   `json:"from" binding:"required"`
	To       string   `json:"to" binding:"required"`
	Weekdays []int    `json:"weekdays"`
	Times    []string `json:"times" binding:"required"`
}

func (r targetRequest) target() (slots.Target, error) {
	from, to, err := parseRange(r.From, r.To)
	if err != nil {
		return slots.Target{}, err
	}

	weekdays := make([]time.Weekday, len(r.Weekdays))
	for i, d := range r.Weekdays {
		weekdays[i] = time.Weekday(d)
	}
	return slots.Target{From: from, To: to, Weekdays: weekdays, Times: r.Times}, nil
}

type bulkUpsertRequest struct {
	targetRequest
	slots.Patch
}

type slotRequest struct {
	Date        string `json:"date" binding:"required"`
	Time        string `json:"time" binding:"required"`
	Capacity    int    `json:"capacity"`
	IsAvailable *bool  `json:"is_available"`
	Category    string `json:"category"`
}

type slotResponse struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Capacity    int    `json:"capacity"`
	IsAvailable bool   `json:"is_available"`
	Category    string `json:"category"`
}

func NewAdminHandler(slotService slots.UseCase, reservations reservation.UseCase, orders reclaimer.UseCase) *AdminHandler {
	return &AdminHandler{slots: slotService, reservations: reservations, orders: orders}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	router.POST("/slots/bulk/preview", h.preview)
	router.POST("/slots/bulk", h.bulkUpsert)
	router.DELETE("/slots/bulk", h.bulkDelete)
	router.PUT("/slots", h.upsertSlot)
	router.DELETE("/slots/:date/:time", h.deleteSlot)
	router.GET("/slots/export", h.export)
	router.POST("/reclaim", h.reclaim)
}

func (h *AdminHandler) preview(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := req.target()
	if err != nil {
		writeError(c, err)
		return
	}

	p, err := h.slots.Preview(c.Request.Context(), target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *AdminHandler) bulkUpsert(c *gin.Context) {
	var req bulkUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := req.target()
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.slots.BulkUpsert(c.Request.Context(), target, req.Patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) bulkDelete(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := req.target()
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.slots.BulkDelete(c.Request.Context(), target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) upsertSlot(c *gin.Context) {
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := domain.NewSlotKey(req.Date, req.Time)
	if err != nil {
		writeError(c, err)
		return
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	slot, err := h.slots.UpsertSlot(c.Request.Context(), slots.SlotInput{
		Key:         key,
		Capacity:    req.Capacity,
		IsAvailable: available,
		Category:    req.Category,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, slotResponse{
		Date:        slot.Key.DateString(),
		Time:        slot.Key.Time,
		Capacity:    slot.MaxCapacity,
		IsAvailable: slot.IsAvailable,
		Category:    slot.Category,
	})
}

func (h *AdminHandler) deleteSlot(c *gin.Context) {
	key, err := domain.NewSlotKey(c.Param("date"), c.Param("time"))
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.slots.DeleteSlot(c.Request.Context(), key); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) export(c *gin.Context) {
	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}

	rows, err := h.reservations.Availability(c.Request.Context(), from, to, "")
	if err != nil {
		writeError(c, err)
		return
	}

	filename := fmt.Sprintf("occupancy_%s_%s.xlsx", from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := export.WriteOccupancy(c.Writer, rows); err != nil {
		_ = c.Error(err)
	}
}

func (h *AdminHandler) reclaim(c *gin.Context) {
	res, err := h.orders.ReclaimExpiredPendingOrders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
