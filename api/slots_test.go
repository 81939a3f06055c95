package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func mustKey(t *testing.T, date, tm string) domain.SlotKey {
	t.Helper()
	key, err := domain.NewSlotKey(date, tm)
	require.NoError(t, err)
	return key
}

func TestSlotHandler_hold(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewSlotHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/holds", holdRequest{Date: "2025-12-01", Time: "10:00", SessionID: "A"})

	expires := time.Date(2025, 12, 1, 9, 15, 0, 0, time.UTC)
	mockService.On("Hold", c.Request.Context(), mustKey(t, "2025-12-01", "10:00"), "A", []int64(nil)).
		Return(domain.HoldResult{Success: true, ExpiresAt: expires}, nil)

	handler.hold(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response holdResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, "2025-12-01T09:15:00Z", response.ExpiresAt)
	mockService.AssertExpectations(t)
}

func TestSlotHandler_holdFull(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewSlotHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/holds", holdRequest{Date: "2025-12-01", Time: "10:00", SessionID: "B", ProductIDs: []int64{7}})

	mockService.On("Hold", mock.Anything, mustKey(t, "2025-12-01", "10:00"), "B", []int64{7}).
		Return(domain.HoldResult{Reason: domain.ReasonFull}, nil)

	handler.hold(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response holdResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Success)
	assert.Equal(t, domain.ReasonFull, response.Reason)
	assert.NotEmpty(t, response.Message)
}

func TestSlotHandler_holdValidation(t *testing.T) {
	handler := NewSlotHandler(&MockReservationUseCase{})
	gin.SetMode(gin.TestMode)

	for name, body := range map[string]any{
		"missing session": holdRequest{Date: "2025-12-01", Time: "10:00"},
		"bad time":        holdRequest{Date: "2025-12-01", Time: "10h", SessionID: "A"},
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = jsonRequest(t, http.MethodPost, "/api/v1/holds", body)

			handler.hold(c)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSlotHandler_release(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewSlotHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodDelete, "/api/v1/holds", releaseRequest{Date: "2025-12-01", Time: "10:00", SessionID: "A"})

	mockService.On("Release", mock.Anything, mustKey(t, "2025-12-01", "10:00"), "A").Return(nil)

	handler.release(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}

func TestSlotHandler_check(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewSlotHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "date", Value: "2025-12-01"}, {Key: "time", Value: "10:00"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/slots/2025-12-01/10:00/check?session_id=A&product_ids=1,2", nil)

	mockService.On("Check", mock.Anything, mustKey(t, "2025-12-01", "10:00"), "A", []int64{1, 2}).
		Return(domain.Availability{Available: true, Remaining: 2}, nil)

	handler.check(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"available":true,"remaining_capacity":2}`, w.Body.String())
}

func TestSlotHandler_checkBadProductIDs(t *testing.T) {
	handler := NewSlotHandler(&MockReservationUseCase{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "date", Value: "2025-12-01"}, {Key: "time", Value: "10:00"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/check?product_ids=1,x", nil)

	handler.check(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSlotHandler_finalCheck(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewSlotHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/v1/checkout/check", finalCheckRequest{
		Date: "2025-12-01", Time: "10:00", SessionID: "A", IsUserOwnSelection: true,
	})

	mockService.On("CheckFinal", mock.Anything, mustKey(t, "2025-12-01", "10:00"), "A", true, []int64(nil)).
		Return(domain.FinalCheck{Valid: false, Reason: domain.ReasonFull, Message: domain.ReasonFull.Message()}, nil)

	handler.finalCheck(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response domain.FinalCheck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Valid)
	assert.Equal(t, domain.ReasonFull.Message(), response.Message)
}

func TestSlotHandler_availability(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewSlotHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/availability?from=2025-12-01&to=2025-12-07&category=bread", nil)

	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC)
	slots := []domain.SlotAvailability{{Date: "2025-12-01", Time: "08:00", MaxCapacity: 3, RemainingCapacity: 2, IsAvailable: true}}
	mockService.On("Availability", mock.Anything, from, to, "bread").Return(slots, nil)

	handler.availability(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []domain.SlotAvailability
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, slots, response)
}

func TestSlotHandler_availabilityErrors(t *testing.T) {
	mockService := &MockReservationUseCase{}
	handler := NewSlotHandler(mockService)
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/availability?from=bad&to=2025-12-07", nil)
	handler.availability(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/availability?from=2025-12-01&to=2025-12-07", nil)
	mockService.On("Availability", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, errors.New("db down"))
	handler.availability(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}
