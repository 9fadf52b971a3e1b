package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parkstand-backend/internal/auth"
	"parkstand-backend/internal/session"
	"parkstand-backend/internal/store"
)

type checkInRequest struct {
	PlateNumber  string `json:"plate_number"`
	VehicleClass string `json:"vehicle_class"`
}

// PostCheckIn handles POST /api/sessions.
func (h *Handler) PostCheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.manager.CheckIn(c.Request.Context(), session.CheckInInput{
		StandID:      auth.StandID(c),
		OperatorID:   auth.OperatorID(c),
		PlateNumber:  req.PlateNumber,
		VehicleClass: req.VehicleClass,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type checkOutRequest struct {
	Token         string `json:"token"`
	PlateNumber   string `json:"plate_number"`
	PaymentMethod string `json:"payment_method"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

// PostCheckOutByID handles POST /api/sessions/:id/checkout.
func (h *Handler) PostCheckOutByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req checkOutRequest
	// The body is optional here; it only carries payment metadata.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	closed, err := h.manager.CheckOut(c.Request.Context(), session.CheckOutInput{
		StandID:       auth.StandID(c),
		Ref:           store.SessionRef{SessionID: id},
		PaymentMethod: req.PaymentMethod,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, closed)
}

// PostCheckOut handles POST /api/sessions/checkout, resolving the session
// by token or plate from the request body.
func (h *Handler) PostCheckOut(c *gin.Context) {
	var req checkOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Token == "" && req.PlateNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token or plate_number is required"})
		return
	}

	closed, err := h.manager.CheckOut(c.Request.Context(), session.CheckOutInput{
		StandID:       auth.StandID(c),
		Ref:           store.SessionRef{Token: req.Token, Plate: req.PlateNumber},
		PaymentMethod: req.PaymentMethod,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, closed)
}

// PostCancel handles POST /api/sessions/:id/cancel.
func (h *Handler) PostCancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	cancelled, err := h.manager.Cancel(c.Request.Context(), id, auth.StandID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelled)
}

// GetToday handles GET /api/sessions/today.
func (h *Handler) GetToday(c *gin.Context) {
	sessions, err := h.manager.ListToday(c.Request.Context(), auth.StandID(c), h.location)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// GetActive handles GET /api/sessions/active.
func (h *Handler) GetActive(c *gin.Context) {
	sessions, err := h.manager.ListActive(c.Request.Context(), auth.StandID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// GetByToken handles GET /api/sessions/token/:token.
func (h *Handler) GetByToken(c *gin.Context) {
	found, err := h.manager.FindByToken(c.Request.Context(), c.Param("token"), auth.StandID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// GetSearch handles GET /api/sessions/search?plate=.
func (h *Handler) GetSearch(c *gin.Context) {
	fragment := c.Query("plate")
	if fragment == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "plate query parameter is required"})
		return
	}

	sessions, err := h.manager.SearchByPlate(c.Request.Context(), fragment, auth.StandID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}
