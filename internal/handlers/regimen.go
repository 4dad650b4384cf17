package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/auth"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/reminder"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/store"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/websocket"
)

// RegimenHandler imports a medication, one schedule and its dose times as
// a single unit, the shape prescriptions arrive in.
type RegimenHandler struct {
	store       *store.Store
	coordinator *reminder.Coordinator
	hub         *websocket.Hub
	validator   *validator.Validate
	log         zerolog.Logger
}

func NewRegimenHandler(st *store.Store, coord *reminder.Coordinator, hub *websocket.Hub, log zerolog.Logger) *RegimenHandler {
	return &RegimenHandler{
		store:       st,
		coordinator: coord,
		hub:         hub,
		validator:   validator.New(),
		log:         log.With().Str("component", "regimen-import").Logger(),
	}
}

func (h *RegimenHandler) ImportRegimen(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.RegimenImport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	days, err := models.NewWeekdaySet(req.Schedule.DaysOfWeek)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reminderEnabled := true
	if req.Schedule.ReminderEnabled != nil {
		reminderEnabled = *req.Schedule.ReminderEnabled
	}

	medication := &models.Medication{
		UserID:    userID,
		ProfileID: req.Medication.ProfileID,
		Name:      req.Medication.Name,
		Notes:     req.Medication.Notes,
		URL:       req.Medication.URL,
	}

	schedule := &models.Schedule{
		Recurrence:      req.Schedule.Recurrence,
		FrequencyPerDay: req.Schedule.FrequencyPerDay,
		IsForever:       req.Schedule.IsForever,
		StartDate:       req.Schedule.StartDate,
		EndDate:         req.Schedule.EndDate,
		DaysOfWeek:      days,
		Timezone:        req.Schedule.Timezone,
		ReminderEnabled: reminderEnabled,
	}

	times := make([]*models.DoseTime, 0, len(req.Times))
	for _, tr := range req.Times {
		sortOrder := len(times)
		if tr.SortOrder != nil {
			sortOrder = *tr.SortOrder
		}
		times = append(times, &models.DoseTime{
			TimeLocal:    tr.TimeLocal,
			Dosage:       tr.Dosage,
			DoseAmount:   tr.DoseAmount,
			DoseUnit:     tr.DoseUnit,
			Instructions: tr.Instructions,
			PRN:          tr.PRN,
			SortOrder:    sortOrder,
		})
	}

	if err := h.store.ImportRegimen(context.Background(), medication, schedule, times); err != nil {
		writeStoreError(c, err, "Failed to import regimen")
		return
	}

	// The import has committed; a recompute failure here must not turn
	// the response into an error the client would retry. The resync job
	// arms anything missed.
	degenerate := false
	for _, dt := range times {
		if err := h.coordinator.Recompute(context.Background(), schedule, dt); err != nil {
			h.log.Warn().Err(err).Str("dose_time_id", dt.ID).Msg("recompute after import failed")
			continue
		}
		if schedule.ReminderEnabled && !dt.PRN && dt.NextTriggerTs == nil {
			degenerate = true
		}
	}

	h.hub.SendEntityUpdate(userID, websocket.MessageTypeMedicationUpdate, websocket.ActionCreated, medication)

	response := gin.H{
		"medication": medication,
		"schedule":   schedule,
		"times":      times,
	}
	if degenerate {
		response["warning"] = degenerateWarning
	}

	c.JSON(http.StatusCreated, response)
}
