package once

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run kinds recorded by the CLIs.
const (
	RunKindFormat   = "format"
	RunKindEvaluate = "evaluate"
)

// Run records one formatting or evaluation pass over a result set.
type Run struct {
	RunID       string             `json:"run_id"`
	Kind        string             `json:"kind"`
	Split       string             `json:"split,omitempty"`
	InfosPath   string             `json:"infos_path,omitempty"`
	OutputDir   string             `json:"output_dir,omitempty"`
	FrameCount  int                `json:"frame_count"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	CreatedAtNs int64              `json:"created_at_ns"`
}

// ResultStore persists runs and their formatted prediction records.
type ResultStore struct {
	db *sql.DB
}

// NewResultStore creates a ResultStore backed by the given database.
func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

// InsertRun creates a new run row. If run.RunID is empty, a new UUID is
// generated.
func (s *ResultStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAtNs == 0 {
		run.CreatedAtNs = time.Now().UnixNano()
	}

	metricsJSON, err := marshalMetrics(run.Metrics)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO once_runs (
			run_id, kind, split, infos_path, output_dir,
			frame_count, metrics_json, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		run.RunID,
		run.Kind,
		nullString(run.Split),
		nullString(run.InfosPath),
		nullString(run.OutputDir),
		run.FrameCount,
		metricsJSON,
		run.CreatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *ResultStore) GetRun(runID string) (*Run, error) {
	query := `
		SELECT run_id, kind, split, infos_path, output_dir,
		       frame_count, metrics_json, created_at_ns
		FROM once_runs
		WHERE run_id = ?
	`

	var run Run
	var split, infosPath, outputDir, metricsJSON sql.NullString

	err := s.db.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.Kind,
		&split,
		&infosPath,
		&outputDir,
		&run.FrameCount,
		&metricsJSON,
		&run.CreatedAtNs,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.Split = split.String
	run.InfosPath = infosPath.String
	run.OutputDir = outputDir.String
	if metricsJSON.Valid && metricsJSON.String != "" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &run.Metrics); err != nil {
			return nil, fmt.Errorf("parse run metrics: %w", err)
		}
	}
	return &run, nil
}

// ListRuns returns runs in reverse creation order, newest first.
func (s *ResultStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT run_id, kind, split, infos_path, output_dir,
		       frame_count, metrics_json, created_at_ns
		FROM once_runs
		ORDER BY created_at_ns DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var split, infosPath, outputDir, metricsJSON sql.NullString
		if err := rows.Scan(
			&run.RunID, &run.Kind, &split, &infosPath, &outputDir,
			&run.FrameCount, &metricsJSON, &run.CreatedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Split = split.String
		run.InfosPath = infosPath.String
		run.OutputDir = outputDir.String
		if metricsJSON.Valid && metricsJSON.String != "" {
			if err := json.Unmarshal([]byte(metricsJSON.String), &run.Metrics); err != nil {
				return nil, fmt.Errorf("parse run metrics: %w", err)
			}
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// SetRunMetrics attaches evaluation metrics to an existing run.
func (s *ResultStore) SetRunMetrics(runID string, metrics map[string]float64) error {
	metricsJSON, err := marshalMetrics(metrics)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE once_runs SET metrics_json = ? WHERE run_id = ?`, metricsJSON, runID)
	if err != nil {
		return fmt.Errorf("update run metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run metrics: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// RecordPredictions stores one modality's submission records for a run.
// Modality is "" for plain (non-split) result sets.
func (s *ResultStore) RecordPredictions(runID, modality string, records []SubmissionRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin predictions tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO once_predictions (run_id, frame_id, modality, record_json)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare predictions insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction %s: %w", rec.FrameID, err)
		}
		if _, err := stmt.Exec(runID, rec.FrameID, modality, string(recJSON)); err != nil {
			return fmt.Errorf("insert prediction %s: %w", rec.FrameID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit predictions: %w", err)
	}
	return nil
}

// GetPredictions loads one modality's submission records for a run in frame
// order of insertion.
func (s *ResultStore) GetPredictions(runID, modality string) ([]SubmissionRecord, error) {
	rows, err := s.db.Query(`
		SELECT record_json FROM once_predictions
		WHERE run_id = ? AND modality = ?
		ORDER BY rowid
	`, runID, modality)
	if err != nil {
		return nil, fmt.Errorf("get predictions: %w", err)
	}
	defer rows.Close()

	var records []SubmissionRecord
	for rows.Next() {
		var recJSON string
		if err := rows.Scan(&recJSON); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		var rec SubmissionRecord
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			return nil, fmt.Errorf("parse prediction: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func marshalMetrics(metrics map[string]float64) (interface{}, error) {
	if metrics == nil {
		return nil, nil
	}
	data, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}
	return string(data), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
