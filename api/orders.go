package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/Domenick1991/pickupslots/internal/service/reclaimer"
	"github.com/Domenick1991/pickupslots/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	reservations reservation.UseCase
	orders       reclaimer.UseCase
}

type placeOrderRequest struct {
	Date       string  `json:"date" binding:"required"`
	Time       string  `json:"time" binding:"required"`
	SessionID  string  `json:"session_id" binding:"required"`
	Email      string  `json:"email" binding:"required,email"`
	ProductIDs []int64 `json:"product_ids"`
}

type orderResponse struct {
	OrderID              string `json:"order_id"`
	Date                 string `json:"date"`
	Time                 string `json:"time"`
	Email                string `json:"email"`
	PaymentStatus        string `json:"payment_status"`
	ReservationExpiresAt string `json:"reservation_expires_at"`
}

func newOrderResponse(b *domain.Booking) orderResponse {
	return orderResponse{
		OrderID:              b.OrderID,
		Date:                 b.Key.DateString(),
		Time:                 b.Key.Time,
		Email:                b.Email,
		PaymentStatus:        string(b.PaymentStatus),
		ReservationExpiresAt: b.ReservationExpiresAt.Format(time.RFC3339),
	}
}

func NewOrderHandler(reservations reservation.UseCase, orders reclaimer.UseCase) *OrderHandler {
	return &OrderHandler{reservations: reservations, orders: orders}
}

func (h *OrderHandler) Register(router *gin.RouterGroup, limit gin.HandlerFunc) {
	router.POST("", limit, h.place)
	router.GET("/:id", h.get)
	router.POST("/:id/pay", h.pay)
	router.POST("/:id/cancel", h.cancel)
}

func (h *OrderHandler) place(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := domain.NewSlotKey(req.Date, req.Time)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.reservations.PlaceOrder(c.Request.Context(), reservation.PlaceOrderInput{
		Key:        key,
		SessionID:  req.SessionID,
		Email:      req.Email,
		ProductIDs: req.ProductIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if !res.Success {
		c.JSON(http.StatusConflict, res)
		return
	}
	c.JSON(http.StatusCreated, newOrderResponse(res.Booking))
}

func (h *OrderHandler) get(c *gin.Context) {
	b, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(b))
}

func (h *OrderHandler) pay(c *gin.Context) {
	b, err := h.orders.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(b))
}

func (h *OrderHandler) cancel(c *gin.Context) {
	b, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(b))
}
