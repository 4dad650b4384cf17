package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/auth"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/config"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/reminder"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/store"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/websocket"
)

type testEnv struct {
	router  *gin.Engine
	store   *store.Store
	manager *auth.JWTManager
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.NewMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := zerolog.Nop()
	hub := websocket.NewHub(log)
	go hub.Run()

	var coord *reminder.Coordinator
	disp := reminder.NewTimerDispatcher(func(id string, p reminder.Payload) {
		coord.HandleFired(id, p)
	}, log)
	t.Cleanup(disp.Stop)
	coord = reminder.NewCoordinator(st, disp, reminder.MultiNotifier{reminder.NewHubNotifier(hub)}, log)

	cfg := &config.Config{
		Port: "0",
		JWT:  config.JWTConfig{Secret: "test-secret", ExpiresIn: "1h"},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}

	manager := auth.NewJWTManager(cfg.JWT)
	token, err := manager.GenerateToken("user-1")
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	return &testEnv{
		router:  SetupRouter(st, coord, hub, cfg, log),
		store:   st,
		manager: manager,
		token:   token,
	}
}

func (e *testEnv) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.manager.GenerateToken(userID)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (e *testEnv) doAs(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return e.doAs(t, e.token, method, path, body)
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("invalid json %q: %v", rr.Body.String(), err)
	}
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d, body=%s", rr.Code, want, rr.Body.String())
	}
}

// createMedication posts a minimal medication and returns it.
func (e *testEnv) createMedication(t *testing.T, name string) models.Medication {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/medications", gin.H{"name": name})
	wantStatus(t, rr, http.StatusCreated)
	var med models.Medication
	decodeJSON(t, rr, &med)
	return med
}

func (e *testEnv) createSchedule(t *testing.T, medicationID string, body gin.H) models.Schedule {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/medications/"+medicationID+"/schedules", body)
	wantStatus(t, rr, http.StatusCreated)
	var sc models.Schedule
	decodeJSON(t, rr, &sc)
	return sc
}

// ============================================================
// Auth and health
// ============================================================

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doAs(t, "", http.MethodGet, "/health", nil)
	wantStatus(t, rr, http.StatusOK)
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doAs(t, "", http.MethodGet, "/api/medications", nil)
	wantStatus(t, rr, http.StatusUnauthorized)

	rr = env.doAs(t, "not-a-token", http.MethodGet, "/api/medications", nil)
	wantStatus(t, rr, http.StatusUnauthorized)
}

func TestTokenQueryParamWorks(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doAs(t, "", http.MethodGet, "/api/medications?token="+env.token, nil)
	wantStatus(t, rr, http.StatusOK)
}

func TestWebSocketStatus(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/ws/status", nil)
	wantStatus(t, rr, http.StatusOK)

	var resp struct {
		Connections int `json:"connections"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Connections != 0 {
		t.Errorf("connections = %d, want 0", resp.Connections)
	}
}

// ============================================================
// Medications
// ============================================================

func TestMedicationLifecycle(t *testing.T) {
	env := newTestEnv(t)

	med := env.createMedication(t, "Aspirin")
	if med.ID == "" || med.CreatedAt == 0 {
		t.Fatalf("created medication incomplete: %+v", med)
	}

	rr := env.do(t, http.MethodGet, "/api/medications", nil)
	wantStatus(t, rr, http.StatusOK)
	var list struct {
		Medications []models.Medication `json:"medications"`
	}
	decodeJSON(t, rr, &list)
	if len(list.Medications) != 1 {
		t.Fatalf("listed %d medications, want 1", len(list.Medications))
	}

	rr = env.do(t, http.MethodPut, "/api/medications/"+med.ID, gin.H{"name": "Aspirin 500"})
	wantStatus(t, rr, http.StatusOK)
	var updated models.Medication
	decodeJSON(t, rr, &updated)
	if updated.Name != "Aspirin 500" {
		t.Errorf("name = %q", updated.Name)
	}
	if updated.CreatedAt != med.CreatedAt {
		t.Error("created_at changed on update")
	}

	rr = env.do(t, http.MethodDelete, "/api/medications/"+med.ID, nil)
	wantStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodGet, "/api/medications/"+med.ID, nil)
	wantStatus(t, rr, http.StatusNotFound)
}

func TestMedicationValidation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/medications", gin.H{})
	wantStatus(t, rr, http.StatusBadRequest)

	req := httptest.NewRequest(http.MethodPost, "/api/medications", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+env.token)
	rr2 := httptest.NewRecorder()
	env.router.ServeHTTP(rr2, req)
	wantStatus(t, rr2, http.StatusBadRequest)
}

func TestForeignMedicationLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	med := env.createMedication(t, "Aspirin")

	stranger := env.tokenFor(t, "user-2")

	rr := env.doAs(t, stranger, http.MethodGet, "/api/medications/"+med.ID, nil)
	wantStatus(t, rr, http.StatusNotFound)

	rr = env.doAs(t, stranger, http.MethodPut, "/api/medications/"+med.ID, gin.H{"name": "Hijacked"})
	wantStatus(t, rr, http.StatusNotFound)

	rr = env.doAs(t, stranger, http.MethodDelete, "/api/medications/"+med.ID, nil)
	wantStatus(t, rr, http.StatusNotFound)

	// Still intact for the owner.
	rr = env.do(t, http.MethodGet, "/api/medications/"+med.ID, nil)
	wantStatus(t, rr, http.StatusOK)
}

// ============================================================
// Schedules
// ============================================================

func TestScheduleLifecycle(t *testing.T) {
	env := newTestEnv(t)
	med := env.createMedication(t, "Aspirin")

	sc := env.createSchedule(t, med.ID, gin.H{
		"schedule":   "Daily",
		"timezone":   "UTC",
		"is_forever": true,
	})
	if sc.MedicationID != med.ID || !sc.ReminderEnabled {
		t.Fatalf("created schedule incomplete: %+v", sc)
	}

	rr := env.do(t, http.MethodGet, "/api/medications/"+med.ID+"/schedules", nil)
	wantStatus(t, rr, http.StatusOK)
	var list struct {
		Schedules []models.Schedule `json:"schedules"`
	}
	decodeJSON(t, rr, &list)
	if len(list.Schedules) != 1 {
		t.Fatalf("listed %d schedules, want 1", len(list.Schedules))
	}

	rr = env.do(t, http.MethodPut, "/api/schedules/"+sc.ID, gin.H{"schedule": "Every evening"})
	wantStatus(t, rr, http.StatusOK)
	var updated models.Schedule
	decodeJSON(t, rr, &updated)
	if updated.Recurrence != "Every evening" {
		t.Errorf("recurrence = %q", updated.Recurrence)
	}

	rr = env.do(t, http.MethodDelete, "/api/schedules/"+sc.ID, nil)
	wantStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodGet, "/api/schedules/"+sc.ID, nil)
	wantStatus(t, rr, http.StatusNotFound)
}

func TestScheduleRejectsBrokenInvariants(t *testing.T) {
	env := newTestEnv(t)
	med := env.createMedication(t, "Aspirin")

	end := time.Now().Add(24 * time.Hour).UnixMilli()
	rr := env.do(t, http.MethodPost, "/api/medications/"+med.ID+"/schedules", gin.H{
		"schedule":   "Daily",
		"timezone":   "UTC",
		"is_forever": true,
		"end_date":   end,
	})
	wantStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodPost, "/api/medications/"+med.ID+"/schedules", gin.H{
		"schedule": "Daily",
		"timezone": "Mars/OlympusMons",
	})
	wantStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodPost, "/api/medications/"+med.ID+"/schedules", gin.H{
		"schedule":     "Daily",
		"timezone":     "UTC",
		"days_of_week": []string{"1", "2"},
	})
	wantStatus(t, rr, http.StatusBadRequest)

	sc := env.createSchedule(t, med.ID, gin.H{
		"schedule":   "Daily",
		"timezone":   "UTC",
		"is_forever": true,
	})
	rr = env.do(t, http.MethodPut, "/api/schedules/"+sc.ID, gin.H{"end_date": end})
	wantStatus(t, rr, http.StatusBadRequest)
}

// ============================================================
// Dose times and triggers
// ============================================================

func TestDoseTimeGetsArmedTrigger(t *testing.T) {
	env := newTestEnv(t)
	med := env.createMedication(t, "Aspirin")
	sc := env.createSchedule(t, med.ID, gin.H{
		"schedule":   "Daily",
		"timezone":   "UTC",
		"is_forever": true,
	})

	rr := env.do(t, http.MethodPost, "/api/schedules/"+sc.ID+"/times", gin.H{
		"time_local":  "08:00",
		"dose_amount": 2.0,
		"dose_unit":   "tablet",
	})
	wantStatus(t, rr, http.StatusCreated)
	var dt models.DoseTime
	decodeJSON(t, rr, &dt)
	if dt.NextTriggerTs == nil {
		t.Fatal("no trigger computed for enabled daily schedule")
	}
	if *dt.NextTriggerTs <= time.Now().UnixMilli() {
		t.Errorf("trigger %d is not in the future", *dt.NextTriggerTs)
	}

	rr = env.do(t, http.MethodPut, "/api/times/"+dt.ID, gin.H{"time_local": "09:30"})
	wantStatus(t, rr, http.StatusOK)
	var moved models.DoseTime
	decodeJSON(t, rr, &moved)
	if moved.NextTriggerTs == nil {
		t.Fatal("trigger lost after reschedule")
	}
	movedAt := time.UnixMilli(*moved.NextTriggerTs).UTC()
	if movedAt.Hour() != 9 || movedAt.Minute() != 30 {
		t.Errorf("trigger fires at %02d:%02d, want 09:30", movedAt.Hour(), movedAt.Minute())
	}

	rr = env.do(t, http.MethodDelete, "/api/times/"+dt.ID, nil)
	wantStatus(t, rr, http.StatusOK)
	rr = env.do(t, http.MethodGet, "/api/times/"+dt.ID, nil)
	wantStatus(t, rr, http.StatusNotFound)
}

func TestDoseTimeRejectsBadClock(t *testing.T) {
	env := newTestEnv(t)
	med := env.createMedication(t, "Aspirin")
	sc := env.createSchedule(t, med.ID, gin.H{
		"schedule":   "Daily",
		"timezone":   "UTC",
		"is_forever": true,
	})

	for _, clock := range []string{"25:00", "08:61", "800"} {
		rr := env.do(t, http.MethodPost, "/api/schedules/"+sc.ID+"/times", gin.H{"time_local": clock})
		wantStatus(t, rr, http.StatusBadRequest)
	}
}

func TestPRNDoseTimeNeverArms(t *testing.T) {
	env := newTestEnv(t)
	med := env.createMedication(t, "Painkiller")
	sc := env.createSchedule(t, med.ID, gin.H{
		"schedule":   "As needed",
		"timezone":   "UTC",
		"is_forever": true,
	})

	rr := env.do(t, http.MethodPost, "/api/schedules/"+sc.ID+"/times", gin.H{
		"time_local": "08:00",
		"prn":        true,
	})
	wantStatus(t, rr, http.StatusCreated)
	var dt models.DoseTime
	decodeJSON(t, rr, &dt)
	if dt.NextTriggerTs != nil {
		t.Errorf("PRN dose time got trigger %d", *dt.NextTriggerTs)
	}
}

func TestExhaustedWindowReturnsWarning(t *testing.T) {
	env := newTestEnv(t)
	med := env.createMedication(t, "Antibiotic")

	start := time.Now().Add(-14 * 24 * time.Hour).UnixMilli()
	end := time.Now().Add(-7 * 24 * time.Hour).UnixMilli()
	sc := env.createSchedule(t, med.ID, gin.H{
		"schedule":   "Course",
		"timezone":   "UTC",
		"start_date": start,
		"end_date":   end,
	})

	rr := env.do(t, http.MethodPost, "/api/schedules/"+sc.ID+"/times", gin.H{"time_local": "08:00"})
	wantStatus(t, rr, http.StatusCreated)

	var resp struct {
		Time    models.DoseTime `json:"time"`
		Warning string          `json:"warning"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Warning == "" {
		t.Fatalf("no warning in response %s", rr.Body.String())
	}
	if resp.Time.NextTriggerTs != nil {
		t.Errorf("exhausted window still has trigger %d", *resp.Time.NextTriggerTs)
	}
}

// ============================================================
// Intake ledger
// ============================================================

func TestIntakeLedgerFlow(t *testing.T) {
	env := newTestEnv(t)
	med := env.createMedication(t, "Aspirin")
	sc := env.createSchedule(t, med.ID, gin.H{
		"schedule":   "Daily",
		"timezone":   "UTC",
		"is_forever": true,
	})

	rr := env.do(t, http.MethodPost, "/api/schedules/"+sc.ID+"/times", gin.H{"time_local": "08:00"})
	wantStatus(t, rr, http.StatusCreated)
	var dt models.DoseTime
	decodeJSON(t, rr, &dt)
	armedAt := dt.NextTriggerTs

	first := time.Now().Add(-2 * time.Hour).UnixMilli()
	rr = env.do(t, http.MethodPost, "/api/times/"+dt.ID+"/intakes", gin.H{
		"status":   "taken",
		"taken_ts": first,
	})
	wantStatus(t, rr, http.StatusCreated)

	second := time.Now().Add(-1 * time.Hour).UnixMilli()
	rr = env.do(t, http.MethodPost, "/api/times/"+dt.ID+"/intakes", gin.H{
		"status":   "skipped",
		"taken_ts": second,
	})
	wantStatus(t, rr, http.StatusCreated)

	rr = env.do(t, http.MethodGet, "/api/medications/"+med.ID+"/intakes", nil)
	wantStatus(t, rr, http.StatusOK)
	var list struct {
		Intakes []models.IntakeLog `json:"intakes"`
	}
	decodeJSON(t, rr, &list)
	if len(list.Intakes) != 2 {
		t.Fatalf("listed %d intakes, want 2", len(list.Intakes))
	}
	if list.Intakes[0].TakenTs != second {
		t.Error("intakes are not newest first")
	}

	// Inclusive band around the first entry only.
	path := fmt.Sprintf("/api/medications/%s/intakes?from=%d&to=%d", med.ID, first, first)
	rr = env.do(t, http.MethodGet, path, nil)
	wantStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &list)
	if len(list.Intakes) != 1 || list.Intakes[0].TakenTs != first {
		t.Fatalf("band query returned %+v", list.Intakes)
	}

	// Logging intakes is bookkeeping; the trigger must not move.
	rr = env.do(t, http.MethodGet, "/api/times/"+dt.ID, nil)
	wantStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &dt)
	if dt.NextTriggerTs == nil || armedAt == nil || *dt.NextTriggerTs != *armedAt {
		t.Error("intake logging moved the trigger")
	}
}

func TestIntakeValidation(t *testing.T) {
	env := newTestEnv(t)
	med := env.createMedication(t, "Aspirin")
	sc := env.createSchedule(t, med.ID, gin.H{
		"schedule":   "Daily",
		"timezone":   "UTC",
		"is_forever": true,
	})
	rr := env.do(t, http.MethodPost, "/api/schedules/"+sc.ID+"/times", gin.H{"time_local": "08:00"})
	wantStatus(t, rr, http.StatusCreated)
	var dt models.DoseTime
	decodeJSON(t, rr, &dt)

	rr = env.do(t, http.MethodPost, "/api/times/"+dt.ID+"/intakes", gin.H{"status": "devoured"})
	wantStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodGet, "/api/medications/"+med.ID+"/intakes?from=abc", nil)
	wantStatus(t, rr, http.StatusBadRequest)

	stranger := env.tokenFor(t, "user-2")
	rr = env.doAs(t, stranger, http.MethodPost, "/api/times/"+dt.ID+"/intakes", gin.H{"status": "taken"})
	wantStatus(t, rr, http.StatusNotFound)
}

// ============================================================
// Regimen import
// ============================================================

func TestRegimenImport(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/regimens", gin.H{
		"medication": gin.H{"name": "Amoxicillin"},
		"schedule":   gin.H{"schedule": "3x daily", "timezone": "UTC", "is_forever": true},
		"times": []gin.H{
			{"time_local": "08:00"},
			{"time_local": "14:00"},
			{"time_local": "20:00"},
		},
	})
	wantStatus(t, rr, http.StatusCreated)

	var resp struct {
		Medication models.Medication `json:"medication"`
		Schedule   models.Schedule   `json:"schedule"`
		Times      []models.DoseTime `json:"times"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Medication.ID == "" || resp.Schedule.MedicationID != resp.Medication.ID {
		t.Fatalf("import graph not linked: %+v", resp)
	}
	if len(resp.Times) != 3 {
		t.Fatalf("imported %d times, want 3", len(resp.Times))
	}
	for _, dt := range resp.Times {
		if dt.NextTriggerTs == nil {
			t.Errorf("dose time %s not armed after import", dt.TimeLocal)
		}
	}
}

func TestRegimenImportRequiresTimes(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/regimens", gin.H{
		"medication": gin.H{"name": "Amoxicillin"},
		"schedule":   gin.H{"schedule": "3x daily", "timezone": "UTC"},
		"times":      []gin.H{},
	})
	wantStatus(t, rr, http.StatusBadRequest)
}
