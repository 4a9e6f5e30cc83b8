package schedule

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "schedule_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	store, err := NewStore(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, func() {
		_ = store.Close()
		_ = os.RemoveAll(dir)
	}
}

func TestStore_Create(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:            "nightly-report",
		CronExpr:        "0 * * * *",
		Prompt:          "Summarize the current scene",
		Model:           "sonnet",
		Enabled:         true,
		OverlapBehavior: OverlapSkip,
	}

	err := store.Create(sched)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(sched.ID, "sched_") {
		t.Errorf("Create() ID = %q, want sched_ prefix", sched.ID)
	}
	if sched.CreatedAt.IsZero() {
		t.Error("Create() should set CreatedAt")
	}
	if sched.NextRunAt == nil {
		t.Error("Create() should calculate NextRunAt for enabled schedule")
	}
}

func TestStore_CreateInvalidCron(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:     "invalid-schedule",
		CronExpr: "invalid cron",
		Prompt:   "test",
	}

	err := store.Create(sched)
	if err == nil {
		t.Error("Create() with invalid cron should return error")
	}
}

func TestStore_CreateInvalidOverlap(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:            "bad-overlap",
		CronExpr:        "0 0 * * *",
		Prompt:          "test",
		OverlapBehavior: "sometimes",
	}

	if err := store.Create(sched); err == nil {
		t.Error("Create() with invalid overlap behavior should return error")
	}
}

func TestStore_Get(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:            "test",
		CronExpr:        "0 0 * * *",
		Prompt:          "test prompt",
		Model:           "opus",
		SessionID:       "sess-abc",
		Enabled:         true,
		OverlapBehavior: OverlapParallel,
	}
	if err := store.Create(sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(sched.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.Name != sched.Name {
		t.Errorf("Get().Name = %v, want %v", got.Name, sched.Name)
	}
	if got.Model != "opus" {
		t.Errorf("Get().Model = %v, want opus", got.Model)
	}
	if got.SessionID != "sess-abc" {
		t.Errorf("Get().SessionID = %v, want sess-abc", got.SessionID)
	}
	if got.OverlapBehavior != OverlapParallel {
		t.Errorf("Get().OverlapBehavior = %v, want %v", got.OverlapBehavior, OverlapParallel)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.Get("nonexistent")
	if err != ErrScheduleNotFound {
		t.Errorf("Get() error = %v, want ErrScheduleNotFound", err)
	}
}

func TestStore_List(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		sched := &Schedule{
			Name:     "test",
			CronExpr: "* * * * *",
			Prompt:   "p",
			Enabled:  i%2 == 0,
		}
		if err := store.Create(sched); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := store.List(nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d, want 3", len(all))
	}

	enabled := true
	filtered, err := store.List(&ListFilter{Enabled: &enabled})
	if err != nil {
		t.Fatalf("List(enabled=true) error = %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("List(enabled=true) returned %d, want 2", len(filtered))
	}
}

func TestStore_Update(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:     "original",
		CronExpr: "0 0 * * *",
		Prompt:   "original prompt",
		Enabled:  true,
	}
	if err := store.Create(sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	newName := "updated"
	if err := store.Update(sched.ID, &ScheduleUpdate{Name: &newName}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := store.Get(sched.ID)
	if got.Name != "updated" {
		t.Errorf("After Update, Name = %v, want updated", got.Name)
	}

	// Update cron (should recalculate next_run_at)
	newCron := "0 12 * * *"
	if err := store.Update(sched.ID, &ScheduleUpdate{CronExpr: &newCron}); err != nil {
		t.Fatalf("Update cron error = %v", err)
	}

	got, _ = store.Get(sched.ID)
	if got.CronExpr != "0 12 * * *" {
		t.Errorf("After Update, CronExpr = %v, want 0 12 * * *", got.CronExpr)
	}
}

func TestStore_UpdateInvalidCron(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:     "test",
		CronExpr: "0 0 * * *",
		Prompt:   "p",
	}
	if err := store.Create(sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	invalidCron := "invalid"
	err := store.Update(sched.ID, &ScheduleUpdate{CronExpr: &invalidCron})
	if err == nil {
		t.Error("Update() with invalid cron should return error")
	}
}

func TestStore_Delete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:     "to-delete",
		CronExpr: "0 0 * * *",
		Prompt:   "p",
	}
	if err := store.Create(sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.Delete(sched.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := store.Get(sched.ID)
	if err != ErrScheduleNotFound {
		t.Errorf("Get() after Delete error = %v, want ErrScheduleNotFound", err)
	}
}

func TestStore_DeleteNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.Delete("nonexistent")
	if err != ErrScheduleNotFound {
		t.Errorf("Delete() error = %v, want ErrScheduleNotFound", err)
	}
}

func TestStore_ListDue(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Now()
	past := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)

	// Enabled schedule with past next_run
	sched1 := &Schedule{Name: "due", CronExpr: "* * * * *", Prompt: "p", Enabled: true}
	if err := store.Create(sched1); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, _ = store.db.Exec("UPDATE schedules SET next_run_at = ? WHERE id = ?", past, sched1.ID)

	// Disabled schedule with past next_run
	sched2 := &Schedule{Name: "disabled", CronExpr: "* * * * *", Prompt: "p", Enabled: false}
	if err := store.Create(sched2); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, _ = store.db.Exec("UPDATE schedules SET next_run_at = ? WHERE id = ?", past, sched2.ID)

	// Enabled schedule with future next_run
	sched3 := &Schedule{Name: "future", CronExpr: "* * * * *", Prompt: "p", Enabled: true}
	if err := store.Create(sched3); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, _ = store.db.Exec("UPDATE schedules SET next_run_at = ? WHERE id = ?", future, sched3.ID)

	due, err := store.ListDue(now)
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}

	if len(due) != 1 {
		t.Errorf("ListDue() returned %d, want 1", len(due))
	}
	if len(due) > 0 && due[0].ID != sched1.ID {
		t.Errorf("ListDue() returned wrong schedule")
	}
}

func TestStore_UpdateRunTimes(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:     "test",
		CronExpr: "0 0 * * *",
		Prompt:   "p",
		Enabled:  true,
	}
	if err := store.Create(sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	lastRun := time.Now()
	nextRun := lastRun.Add(24 * time.Hour)

	if err := store.UpdateRunTimes(sched.ID, lastRun, nextRun); err != nil {
		t.Fatalf("UpdateRunTimes() error = %v", err)
	}

	got, _ := store.Get(sched.ID)
	if got.LastRunAt == nil {
		t.Error("LastRunAt should be set")
	}
	if got.NextRunAt == nil {
		t.Error("NextRunAt should be set")
	}
}

func TestStore_UpdateSessionID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:     "test",
		CronExpr: "0 0 * * *",
		Prompt:   "p",
		Enabled:  true,
	}
	if err := store.Create(sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.UpdateSessionID(sched.ID, "sess-123"); err != nil {
		t.Fatalf("UpdateSessionID() error = %v", err)
	}

	got, _ := store.Get(sched.ID)
	if got.SessionID != "sess-123" {
		t.Errorf("SessionID = %v, want sess-123", got.SessionID)
	}
}

func TestStore_RecordAndListExecutions(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	sched := &Schedule{
		Name:     "test",
		CronExpr: "0 0 * * *",
		Prompt:   "p",
		Enabled:  true,
	}
	if err := store.Create(sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	execs := []*Execution{
		{ScheduleID: sched.ID, SessionID: "s1", Status: ExecutionSuccess, DurationMs: 120},
		{ScheduleID: sched.ID, Status: ExecutionSkipped, Error: "previous execution still running"},
		{ScheduleID: sched.ID, Status: ExecutionFailed, Error: "agent unavailable"},
	}
	for _, exec := range execs {
		if err := store.RecordExecution(exec); err != nil {
			t.Fatalf("RecordExecution() error = %v", err)
		}
		if exec.ID == "" {
			t.Error("RecordExecution() should set ID")
		}
	}

	got, err := store.ListExecutions(sched.ID, 10)
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("ListExecutions() returned %d, want 3", len(got))
	}

	limited, err := store.ListExecutions(sched.ID, 2)
	if err != nil {
		t.Fatalf("ListExecutions(limit=2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("ListExecutions(limit=2) returned %d, want 2", len(limited))
	}
}

func TestStore_DatabaseFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "schedule_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	_ = store.Close()

	dbPath := filepath.Join(dir, "schedules.db")
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		t.Error("Database file should be created")
	}
}
