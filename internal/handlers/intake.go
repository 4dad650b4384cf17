package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/auth"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/store"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/websocket"
)

// IntakeHandler serves the intake ledger. Logging an intake is bookkeeping
// only: reminder triggers are driven by the clock, never by what the user
// recorded.
type IntakeHandler struct {
	store     *store.Store
	hub       *websocket.Hub
	validator *validator.Validate
}

func NewIntakeHandler(st *store.Store, hub *websocket.Hub) *IntakeHandler {
	return &IntakeHandler{
		store:     st,
		hub:       hub,
		validator: validator.New(),
	}
}

func (h *IntakeHandler) LogIntake(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	doseTimeID := c.Param("id")

	owner, err := h.store.DoseTimeOwner(context.Background(), doseTimeID)
	if err != nil {
		writeStoreError(c, err, "Failed to verify dose time ownership")
		return
	}
	if owner != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dose time not found or access denied"})
		return
	}

	var req models.LogIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intake, err := h.store.LogIntake(context.Background(), doseTimeID, &req)
	if err != nil {
		writeStoreError(c, err, "Failed to log intake")
		return
	}

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeIntakeLogged, websocket.ActionCreated, intake)

	c.JSON(http.StatusCreated, intake)
}

func (h *IntakeHandler) GetIntakeLogs(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	medicationID := c.Param("id")

	owner, err := h.store.MedicationOwner(context.Background(), medicationID)
	if err != nil {
		writeStoreError(c, err, "Failed to verify medication ownership")
		return
	}
	if owner != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Medication not found or access denied"})
		return
	}

	from, ok := parseMillisQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseMillisQuery(c, "to")
	if !ok {
		return
	}

	intakes, err := h.store.ListIntakeLogs(context.Background(), medicationID, from, to)
	if err != nil {
		writeStoreError(c, err, "Failed to fetch intake logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"intakes": intakes})
}

// parseMillisQuery reads an optional epoch-millisecond query parameter,
// writing the 400 response itself when the value does not parse.
func parseMillisQuery(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " timestamp"})
		return nil, false
	}
	return &ms, true
}
