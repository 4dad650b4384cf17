package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/auth"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/reminder"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/store"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/websocket"
)

type MedicationHandler struct {
	store       *store.Store
	coordinator *reminder.Coordinator
	hub         *websocket.Hub
	validator   *validator.Validate
}

func NewMedicationHandler(st *store.Store, coord *reminder.Coordinator, hub *websocket.Hub) *MedicationHandler {
	return &MedicationHandler{
		store:       st,
		coordinator: coord,
		hub:         hub,
		validator:   validator.New(),
	}
}

func (h *MedicationHandler) GetMedications(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var profileID *string
	if v := c.Query("profile_id"); v != "" {
		profileID = &v
	}

	medications, err := h.store.ListMedications(context.Background(), userID, profileID)
	if err != nil {
		writeStoreError(c, err, "Failed to fetch medications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"medications": medications})
}

func (h *MedicationHandler) CreateMedication(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	medication := &models.Medication{
		UserID:    userID,
		ProfileID: req.ProfileID,
		Name:      req.Name,
		Notes:     req.Notes,
		URL:       req.URL,
	}

	if err := h.store.CreateMedication(context.Background(), medication); err != nil {
		writeStoreError(c, err, "Failed to create medication")
		return
	}

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeMedicationUpdate, websocket.ActionCreated, medication)

	c.JSON(http.StatusCreated, medication)
}

func (h *MedicationHandler) GetMedication(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	medication, err := h.store.GetMedication(context.Background(), c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Failed to fetch medication")
		return
	}

	if medication.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Medication not found or access denied"})
		return
	}

	c.JSON(http.StatusOK, medication)
}

func (h *MedicationHandler) UpdateMedication(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	medicationID := c.Param("id")

	var req models.UpdateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner, err := h.store.MedicationOwner(context.Background(), medicationID)
	if err != nil {
		writeStoreError(c, err, "Failed to verify medication ownership")
		return
	}
	if owner != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Medication not found or access denied"})
		return
	}

	medication, err := h.store.UpdateMedication(context.Background(), medicationID, &req)
	if err != nil {
		writeStoreError(c, err, "Failed to update medication")
		return
	}

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeMedicationUpdate, websocket.ActionUpdated, medication)

	c.JSON(http.StatusOK, medication)
}

func (h *MedicationHandler) DeleteMedication(c *gin.Context) {
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

	doseTimeIDs, err := h.store.DeleteMedication(context.Background(), medicationID)
	if err != nil {
		writeStoreError(c, err, "Failed to delete medication")
		return
	}

	// Timers are cancelled only after the delete has committed.
	h.coordinator.CancelAll(doseTimeIDs)

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeMedicationUpdate, websocket.ActionDeleted, gin.H{"id": medicationID})

	c.JSON(http.StatusOK, gin.H{"message": "Medication deleted successfully"})
}
