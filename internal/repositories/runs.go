package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// RunRepository records transfer runs and their per-item failures.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run row at the start of an operation.
func (r *RunRepository) Create(id, action, source, destination string) error {
	query := `
		INSERT INTO runs (id, action, source, destination, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, id, action, source, destination, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// Finish stamps the run's completion time.
func (r *RunRepository) Finish(id string) error {
	query := `UPDATE runs SET finished_at = ? WHERE id = ?`
	if _, err := r.db.Exec(query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RecordFailure appends one failed item to the run's failure list.
func (r *RunRepository) RecordFailure(runID, category, item, errMsg string) error {
	query := `
		INSERT INTO run_failures (run_id, category, item, error)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, runID, category, item, errMsg); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// CountFailures returns the number of recorded failures for a run.
func (r *RunRepository) CountFailures(runID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM run_failures WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return count, nil
}
