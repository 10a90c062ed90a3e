package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ExperimentStatus tracks an experiment's lifecycle.
type ExperimentStatus string

const (
	ExperimentPending   ExperimentStatus = "pending"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentFailed    ExperimentStatus = "failed"
)

// Experiment is one eval batch against a target chat UI.
type Experiment struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	TargetURL   string           `json:"target_url"`
	Dataset     string           `json:"dataset,omitempty"`
	Concurrency int              `json:"concurrency,omitempty"`
	Repetitions int              `json:"repetitions,omitempty"`
	Status      ExperimentStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Run is one question capture inside an experiment, with its grades.
type Run struct {
	ID           string     `json:"id"`
	ExperimentID string     `json:"experiment_id"`
	Question     string     `json:"question"`
	Reference    string     `json:"reference,omitempty"`
	Answer       string     `json:"answer,omitempty"`
	Success      bool       `json:"success"`
	Channel      string     `json:"channel,omitempty"`
	Passed       *bool      `json:"passed,omitempty"`
	Score        *float64   `json:"score,omitempty"`
	Reasoning    string     `json:"reasoning,omitempty"`
	Similarity   *float64   `json:"similarity,omitempty"`
	DurationMs   int64      `json:"duration_ms,omitempty"`
	Error        *string    `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// CreateExperiment persists a new experiment, assigning an ID and defaults
// for unset fields.
func (s *Store) CreateExperiment(exp *Experiment) error {
	if s == nil || s.db == nil {
		return ErrStoreUnavailable
	}
	if exp == nil {
		return errors.New("experiment is nil")
	}
	if exp.ID == "" {
		exp.ID = ulid.Make().String()
	}
	if exp.Status == "" {
		exp.Status = ExperimentPending
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO experiments (
			id, name, target_url, dataset, concurrency, repetitions,
			status, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		exp.ID,
		exp.Name,
		exp.TargetURL,
		nullIfEmpty(exp.Dataset),
		nullIfZeroInt(exp.Concurrency),
		nullIfZeroInt(exp.Repetitions),
		string(exp.Status),
		exp.CreatedAt,
		nullTime(exp.CompletedAt),
	)
	return err
}

// UpdateExperimentStatus updates status and completion timestamp. Final
// statuses get a completion time even when the caller passes none.
func (s *Store) UpdateExperimentStatus(id string, status ExperimentStatus, completedAt *time.Time) error {
	if s == nil || s.db == nil {
		return ErrStoreUnavailable
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("experiment id is required")
	}
	if status == "" {
		return errors.New("status is required")
	}

	final := status == ExperimentCompleted || status == ExperimentFailed
	if final && completedAt == nil {
		now := time.Now()
		completedAt = &now
	}

	_, err := s.db.Exec(`
		UPDATE experiments
		SET status = ?, completed_at = ?
		WHERE id = ?
	`, string(status), nullTime(completedAt), id)
	return err
}

// GetExperiment loads a single experiment. Returns (nil, nil) when absent.
func (s *Store) GetExperiment(id string) (*Experiment, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreUnavailable
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("experiment id is required")
	}

	row := s.db.QueryRow(`
		SELECT id, name, target_url, dataset, concurrency, repetitions,
		       status, created_at, completed_at
		FROM experiments WHERE id = ?
	`, id)

	exp, err := scanExperiment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return exp, nil
}

// ListExperiments returns recent experiments, newest first.
func (s *Store) ListExperiments(limit int) ([]Experiment, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreUnavailable
	}

	query := `
		SELECT id, name, target_url, dataset, concurrency, repetitions,
		       status, created_at, completed_at
		FROM experiments
		ORDER BY created_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var experiments []Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, *exp)
	}
	return experiments, rows.Err()
}

// SaveRun inserts or updates a run record.
func (s *Store) SaveRun(run *Run) error {
	if s == nil || s.db == nil {
		return ErrStoreUnavailable
	}
	if run == nil {
		return errors.New("run is nil")
	}
	if run.ID == "" {
		run.ID = ulid.Make().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (
			id, experiment_id, question, reference, answer, success, channel,
			passed, score, reasoning, similarity, duration_ms, error,
			started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			experiment_id = excluded.experiment_id,
			question = excluded.question,
			reference = excluded.reference,
			answer = excluded.answer,
			success = excluded.success,
			channel = excluded.channel,
			passed = excluded.passed,
			score = excluded.score,
			reasoning = excluded.reasoning,
			similarity = excluded.similarity,
			duration_ms = excluded.duration_ms,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`,
		run.ID,
		run.ExperimentID,
		run.Question,
		nullIfEmpty(run.Reference),
		nullIfEmpty(run.Answer),
		boolToInt(run.Success),
		nullIfEmpty(run.Channel),
		nullBoolPtr(run.Passed),
		nullFloatPtr(run.Score),
		nullIfEmpty(run.Reasoning),
		nullFloatPtr(run.Similarity),
		nullIfZeroInt64(run.DurationMs),
		nullStringPtr(run.Error),
		run.StartedAt,
		nullTime(run.CompletedAt),
	)
	return err
}

// ListRuns returns runs for an experiment in start order.
func (s *Store) ListRuns(experimentID string) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreUnavailable
	}
	if strings.TrimSpace(experimentID) == "" {
		return nil, errors.New("experiment id is required")
	}

	rows, err := s.db.Query(`
		SELECT id, question, reference, answer, success, channel,
		       passed, score, reasoning, similarity, duration_ms, error,
		       started_at, completed_at
		FROM runs
		WHERE experiment_id = ?
		ORDER BY started_at
	`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var reference, answer, channel, reasoning sql.NullString
		var success int
		var passed sql.NullInt64
		var score, similarity sql.NullFloat64
		var duration sql.NullInt64
		var errStr sql.NullString
		var completed sql.NullTime

		if err := rows.Scan(
			&run.ID,
			&run.Question,
			&reference,
			&answer,
			&success,
			&channel,
			&passed,
			&score,
			&reasoning,
			&similarity,
			&duration,
			&errStr,
			&run.StartedAt,
			&completed,
		); err != nil {
			return nil, err
		}
		run.ExperimentID = experimentID
		run.Reference = reference.String
		run.Answer = answer.String
		run.Success = success == 1
		run.Channel = channel.String
		run.Reasoning = reasoning.String
		run.DurationMs = duration.Int64
		if passed.Valid {
			value := passed.Int64 == 1
			run.Passed = &value
		}
		if score.Valid {
			value := score.Float64
			run.Score = &value
		}
		if similarity.Valid {
			value := similarity.Float64
			run.Similarity = &value
		}
		if errStr.Valid {
			value := errStr.String
			run.Error = &value
		}
		if completed.Valid {
			run.CompletedAt = &completed.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row scanner) (*Experiment, error) {
	var exp Experiment
	var dataset sql.NullString
	var concurrency, repetitions sql.NullInt64
	var statusStr string
	var completed sql.NullTime

	if err := row.Scan(
		&exp.ID,
		&exp.Name,
		&exp.TargetURL,
		&dataset,
		&concurrency,
		&repetitions,
		&statusStr,
		&exp.CreatedAt,
		&completed,
	); err != nil {
		return nil, err
	}
	exp.Dataset = dataset.String
	exp.Concurrency = int(concurrency.Int64)
	exp.Repetitions = int(repetitions.Int64)
	exp.Status = ExperimentStatus(statusStr)
	if completed.Valid {
		exp.CompletedAt = &completed.Time
	}
	return &exp, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullStringPtr(value *string) any {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return strings.TrimSpace(*value)
}

func nullFloatPtr(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullBoolPtr(value *bool) any {
	if value == nil {
		return nil
	}
	return boolToInt(*value)
}

func nullIfZeroInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullIfZeroInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return *value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
