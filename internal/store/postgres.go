package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiumworks/imagepipe/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5. It exists so the
// in-memory reference registry can be swapped for a durable one without
// touching the orchestrator or the worker pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job, tasks []*models.Task) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO jobs (id, owner_id, created_at) VALUES ($1, $2, $3)`,
		job.ID, job.OwnerID, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	for seq, t := range tasks {
		_, err = tx.Exec(ctx,
			`INSERT INTO tasks (id, job_id, seq, status, progress, input_file, operation)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.JobID, seq, t.Status, t.Progress, t.InputFile, t.Operation)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, ownerID string) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, created_at FROM jobs WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&j.ID, &j.OwnerID, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id FROM tasks WHERE job_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("get job task ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tid uuid.UUID
		if err := rows.Scan(&tid); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		j.TaskIDs = append(j.TaskIDs, tid)
	}
	return &j, rows.Err()
}

func (s *PostgresStore) JobOwner(ctx context.Context, id uuid.UUID) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT owner_id FROM jobs WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get job owner: %w", err)
	}
	return owner, nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const taskColumns = `id, job_id, status, progress, input_file, output_file, operation`

func (s *PostgresStore) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

func (s *PostgresStore) GetTaskForOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT t.id, t.job_id, t.status, t.progress, t.input_file, t.output_file, t.operation
		 FROM tasks t JOIN jobs j ON j.id = t.job_id
		 WHERE t.id = $1 AND j.owner_id = $2`, id, ownerID)
	return scanTask(row)
}

func (s *PostgresStore) JobTasks(ctx context.Context, jobID uuid.UUID) ([]models.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE job_id = $1 ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list job tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if tasks == nil {
		return nil, ErrNotFound
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, models.TaskStatusRunning,
		`UPDATE tasks SET status = $2, progress = 0, updated_at = NOW() WHERE id = $1 AND status = $3`,
		models.TaskStatusPending)
}

func (s *PostgresStore) SetProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if progress > 100 {
		progress = 100
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET progress = GREATEST(progress, $2), updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, progress, models.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("set task progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMiss(ctx, id)
	}
	return nil
}

func (s *PostgresStore) SetSuccess(ctx context.Context, id uuid.UUID, result models.TaskResult) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $2, progress = 100, input_file = $3, output_file = $4,
		        operation = $5, updated_at = NOW()
		 WHERE id = $1 AND status = $6`,
		id, models.TaskStatusSuccess, result.InputFile, result.OutputFile,
		result.Operation, models.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("set task success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMiss(ctx, id)
	}
	return nil
}

func (s *PostgresStore) SetFailed(ctx context.Context, id uuid.UUID, result models.TaskResult) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $2, input_file = $3, output_file = '',
		        operation = $4, updated_at = NOW()
		 WHERE id = $1 AND status = $5`,
		id, models.TaskStatusFailed, result.InputFile, result.Operation,
		models.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("set task failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMiss(ctx, id)
	}
	return nil
}

// transition runs a guarded status update. The WHERE clause carries the
// required current status, so a lost race surfaces as zero rows affected.
func (s *PostgresStore) transition(ctx context.Context, id uuid.UUID, to, query, from string) error {
	tag, err := s.pool.Exec(ctx, query, id, to, from)
	if err != nil {
		return fmt.Errorf("transition task to %s: %w", to, err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMiss(ctx, id)
	}
	return nil
}

func (s *PostgresStore) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get task status: %w", err)
	}
	return ErrInvalidTransition
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	var outputFile string
	err := row.Scan(&t.ID, &t.JobID, &t.Status, &t.Progress, &t.InputFile, &outputFile, &t.Operation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if models.Terminal(t.Status) {
		t.Result = &models.TaskResult{
			InputFile:  t.InputFile,
			OutputFile: outputFile,
			Operation:  t.Operation,
		}
	}
	return &t, nil
}
