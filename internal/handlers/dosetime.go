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

type DoseTimeHandler struct {
	store       *store.Store
	coordinator *reminder.Coordinator
	hub         *websocket.Hub
	validator   *validator.Validate
}

func NewDoseTimeHandler(st *store.Store, coord *reminder.Coordinator, hub *websocket.Hub) *DoseTimeHandler {
	return &DoseTimeHandler{
		store:       st,
		coordinator: coord,
		hub:         hub,
		validator:   validator.New(),
	}
}

func (h *DoseTimeHandler) CreateDoseTime(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	scheduleID := c.Param("id")

	owner, err := h.store.ScheduleOwner(context.Background(), scheduleID)
	if err != nil {
		writeStoreError(c, err, "Failed to verify schedule ownership")
		return
	}
	if owner != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found or access denied"})
		return
	}

	var req models.CreateDoseTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sortOrder := 0
	if req.SortOrder != nil {
		sortOrder = *req.SortOrder
	}

	doseTime := &models.DoseTime{
		ScheduleID:   scheduleID,
		TimeLocal:    req.TimeLocal,
		Dosage:       req.Dosage,
		DoseAmount:   req.DoseAmount,
		DoseUnit:     req.DoseUnit,
		Instructions: req.Instructions,
		PRN:          req.PRN,
		SortOrder:    sortOrder,
	}

	if err := h.store.CreateDoseTime(context.Background(), doseTime); err != nil {
		writeStoreError(c, err, "Failed to create dose time")
		return
	}

	schedule, err := h.store.GetSchedule(context.Background(), scheduleID)
	if err != nil {
		writeStoreError(c, err, "Failed to fetch schedule")
		return
	}

	if err := h.coordinator.Recompute(context.Background(), schedule, doseTime); err != nil {
		writeStoreError(c, err, "Failed to compute reminder")
		return
	}

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeDoseTimeUpdate, websocket.ActionCreated, doseTime)

	if hasDegenerate(schedule.ReminderEnabled, *doseTime) {
		c.JSON(http.StatusCreated, gin.H{"time": doseTime, "warning": degenerateWarning})
		return
	}

	c.JSON(http.StatusCreated, doseTime)
}

func (h *DoseTimeHandler) GetDoseTimes(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	scheduleID := c.Param("id")

	owner, err := h.store.ScheduleOwner(context.Background(), scheduleID)
	if err != nil {
		writeStoreError(c, err, "Failed to verify schedule ownership")
		return
	}
	if owner != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found or access denied"})
		return
	}

	times, err := h.store.ListDoseTimesBySchedule(context.Background(), scheduleID)
	if err != nil {
		writeStoreError(c, err, "Failed to fetch dose times")
		return
	}

	c.JSON(http.StatusOK, gin.H{"times": times})
}

func (h *DoseTimeHandler) GetDoseTime(c *gin.Context) {
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

	doseTime, err := h.store.GetDoseTime(context.Background(), doseTimeID)
	if err != nil {
		writeStoreError(c, err, "Failed to fetch dose time")
		return
	}

	c.JSON(http.StatusOK, doseTime)
}

func (h *DoseTimeHandler) UpdateDoseTime(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	doseTimeID := c.Param("id")

	var req models.UpdateDoseTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner, err := h.store.DoseTimeOwner(context.Background(), doseTimeID)
	if err != nil {
		writeStoreError(c, err, "Failed to verify dose time ownership")
		return
	}
	if owner != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dose time not found or access denied"})
		return
	}

	doseTime, err := h.store.UpdateDoseTime(context.Background(), doseTimeID, &req)
	if err != nil {
		writeStoreError(c, err, "Failed to update dose time")
		return
	}

	schedule, err := h.store.GetSchedule(context.Background(), doseTime.ScheduleID)
	if err != nil {
		writeStoreError(c, err, "Failed to fetch schedule")
		return
	}

	if err := h.coordinator.Recompute(context.Background(), schedule, doseTime); err != nil {
		writeStoreError(c, err, "Failed to compute reminder")
		return
	}

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeDoseTimeUpdate, websocket.ActionUpdated, doseTime)

	if hasDegenerate(schedule.ReminderEnabled, *doseTime) {
		c.JSON(http.StatusOK, gin.H{"time": doseTime, "warning": degenerateWarning})
		return
	}

	c.JSON(http.StatusOK, doseTime)
}

func (h *DoseTimeHandler) DeleteDoseTime(c *gin.Context) {
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

	if err := h.store.DeleteDoseTime(context.Background(), doseTimeID); err != nil {
		writeStoreError(c, err, "Failed to delete dose time")
		return
	}

	h.coordinator.CancelAll([]string{doseTimeID})

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeDoseTimeUpdate, websocket.ActionDeleted, gin.H{"id": doseTimeID})

	c.JSON(http.StatusOK, gin.H{"message": "Dose time deleted successfully"})
}
