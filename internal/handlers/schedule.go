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

type ScheduleHandler struct {
	store       *store.Store
	coordinator *reminder.Coordinator
	hub         *websocket.Hub
	validator   *validator.Validate
}

func NewScheduleHandler(st *store.Store, coord *reminder.Coordinator, hub *websocket.Hub) *ScheduleHandler {
	return &ScheduleHandler{
		store:       st,
		coordinator: coord,
		hub:         hub,
		validator:   validator.New(),
	}
}

func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
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

	var req models.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	days, err := models.NewWeekdaySet(req.DaysOfWeek)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Reminders are on unless the request says otherwise.
	reminderEnabled := true
	if req.ReminderEnabled != nil {
		reminderEnabled = *req.ReminderEnabled
	}

	schedule := &models.Schedule{
		MedicationID:    medicationID,
		Recurrence:      req.Recurrence,
		FrequencyPerDay: req.FrequencyPerDay,
		IsForever:       req.IsForever,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		DaysOfWeek:      days,
		Timezone:        req.Timezone,
		ReminderEnabled: reminderEnabled,
	}

	if err := h.store.CreateSchedule(context.Background(), schedule); err != nil {
		writeStoreError(c, err, "Failed to create schedule")
		return
	}

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeScheduleUpdate, websocket.ActionCreated, schedule)

	c.JSON(http.StatusCreated, schedule)
}

func (h *ScheduleHandler) GetSchedules(c *gin.Context) {
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

	schedules, err := h.store.ListSchedulesByMedication(context.Background(), medicationID)
	if err != nil {
		writeStoreError(c, err, "Failed to fetch schedules")
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
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

	schedule, err := h.store.GetSchedule(context.Background(), scheduleID)
	if err != nil {
		writeStoreError(c, err, "Failed to fetch schedule")
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	scheduleID := c.Param("id")

	var req models.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner, err := h.store.ScheduleOwner(context.Background(), scheduleID)
	if err != nil {
		writeStoreError(c, err, "Failed to verify schedule ownership")
		return
	}
	if owner != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found or access denied"})
		return
	}

	schedule, err := h.store.UpdateSchedule(context.Background(), scheduleID, &req)
	if err != nil {
		writeStoreError(c, err, "Failed to update schedule")
		return
	}

	// The recurrence fields changed, so every dose time under this
	// schedule gets a fresh trigger.
	times, err := h.coordinator.RecomputeSchedule(context.Background(), scheduleID)
	if err != nil {
		writeStoreError(c, err, "Failed to recompute reminders")
		return
	}

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeScheduleUpdate, websocket.ActionUpdated, schedule)

	if hasDegenerate(schedule.ReminderEnabled, times...) {
		c.JSON(http.StatusOK, gin.H{"schedule": schedule, "warning": degenerateWarning})
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
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

	doseTimeIDs, err := h.store.DeleteSchedule(context.Background(), scheduleID)
	if err != nil {
		writeStoreError(c, err, "Failed to delete schedule")
		return
	}

	h.coordinator.CancelAll(doseTimeIDs)

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeScheduleUpdate, websocket.ActionDeleted, gin.H{"id": scheduleID})

	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted successfully"})
}
