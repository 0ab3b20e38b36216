package once

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/once3d/internal/db"
)

// setupTestResultDB creates a file-backed test database with the run and
// prediction tables.
func setupTestResultDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestResultStore_InsertAndGetRun(t *testing.T) {
	database := setupTestResultDB(t)
	store := NewResultStore(database.DB)

	run := &Run{
		Kind:       RunKindFormat,
		Split:      "val",
		InfosPath:  "once_infos_val.json",
		OutputDir:  "/tmp/out",
		FrameCount: 3,
	}
	if err := store.InsertRun(run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if run.RunID == "" {
		t.Fatal("expected run_id to be generated")
	}
	if run.CreatedAtNs == 0 {
		t.Fatal("expected created_at_ns to be set")
	}

	got, err := store.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Kind != RunKindFormat || got.Split != "val" || got.FrameCount != 3 {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.Metrics != nil {
		t.Errorf("expected no metrics, got %v", got.Metrics)
	}
}

func TestResultStore_GetRunNotFound(t *testing.T) {
	database := setupTestResultDB(t)
	store := NewResultStore(database.DB)

	if _, err := store.GetRun("no-such-run"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestResultStore_SetRunMetrics(t *testing.T) {
	database := setupTestResultDB(t)
	store := NewResultStore(database.DB)

	run := &Run{Kind: RunKindEvaluate}
	if err := store.InsertRun(run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	metrics := map[string]float64{"Overall/AP": 0.1235, "Car/AP_50m": 0.6}
	if err := store.SetRunMetrics(run.RunID, metrics); err != nil {
		t.Fatalf("SetRunMetrics failed: %v", err)
	}

	got, err := store.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Metrics["Overall/AP"] != 0.1235 || got.Metrics["Car/AP_50m"] != 0.6 {
		t.Errorf("unexpected metrics: %v", got.Metrics)
	}

	if err := store.SetRunMetrics("no-such-run", metrics); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestResultStore_Predictions(t *testing.T) {
	database := setupTestResultDB(t)
	store := NewResultStore(database.DB)

	run := &Run{Kind: RunKindFormat, FrameCount: 2}
	if err := store.InsertRun(run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	records := []SubmissionRecord{
		{
			FrameID: "frame-a",
			Names:   []string{"Car"},
			Scores:  []float64{0.9},
			Boxes3D: [][7]float64{{2, -1, 1, 4, 2, 2, -1.57}},
		},
		{FrameID: "frame-b", Names: []string{}, Scores: []float64{}, Boxes3D: [][7]float64{}},
	}
	if err := store.RecordPredictions(run.RunID, ModalityPts, records); err != nil {
		t.Fatalf("RecordPredictions failed: %v", err)
	}

	got, err := store.GetPredictions(run.RunID, ModalityPts)
	if err != nil {
		t.Fatalf("GetPredictions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].FrameID != "frame-a" || got[0].Names[0] != "Car" {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if got[0].Boxes3D[0][0] != 2 {
		t.Errorf("unexpected box: %v", got[0].Boxes3D[0])
	}

	// Other modalities stay empty.
	empty, err := store.GetPredictions(run.RunID, ModalityImg)
	if err != nil {
		t.Fatalf("GetPredictions failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no img_bbox records, got %d", len(empty))
	}
}

func TestResultStore_ListRuns(t *testing.T) {
	database := setupTestResultDB(t)
	store := NewResultStore(database.DB)

	first := &Run{Kind: RunKindFormat, CreatedAtNs: 100}
	second := &Run{Kind: RunKindEvaluate, CreatedAtNs: 200}
	if err := store.InsertRun(first); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if err := store.InsertRun(second); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	runs, err := store.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].RunID != second.RunID {
		t.Errorf("runs not in reverse creation order: %v", runs)
	}
}
