package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/danielwei123/llm-evals-platform/internal/domain"
	"github.com/danielwei123/llm-evals-platform/internal/repo"
)

const (
	insertRunQuery = `INSERT INTO runs (id, prompt_id, prompt_version, status, input, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`

	// claimRunQuery hands the oldest queued run to exactly one caller. The
	// inner select locks only the chosen row; SKIP LOCKED makes concurrent
	// claimers pass over rows another transaction holds instead of waiting,
	// and the lock ends when the statement's transaction commits.
	claimRunQuery = `WITH next_run AS (
		SELECT id
		FROM runs
		WHERE status = 'queued'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	)
	UPDATE runs r
	SET status = 'running',
	    started_at = now(),
	    error = NULL
	FROM next_run
	WHERE r.id = next_run.id
	RETURNING r.id`

	runForExecutionQuery = `SELECT r.id, r.prompt_id, r.prompt_version, r.status, r.input, v.content
		FROM runs r
		JOIN prompt_versions v
		  ON v.prompt_id = r.prompt_id
		 AND v.version = r.prompt_version
		WHERE r.id = $1`

	markSucceededQuery = `UPDATE runs
		SET status = 'succeeded', output = $2, finished_at = now()
		WHERE id = $1 AND status = 'running'`

	markFailedQuery = `UPDATE runs
		SET status = 'failed', error = $2, finished_at = now()
		WHERE id = $1 AND status = 'running'`

	requeueRunQuery = `UPDATE runs
		SET status = 'queued', started_at = NULL, error = NULL
		WHERE id = $1 AND status = 'running'`

	selectRunColumns = `id, prompt_id, prompt_version, status, input, output, error, created_at, started_at, finished_at`
)

type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

func (s *RunStore) Create(ctx context.Context, run domain.Run) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	input, err := encodeParameters(run.Input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		insertRunQuery,
		strings.TrimSpace(run.ID),
		strings.TrimSpace(run.PromptID),
		run.PromptVersion,
		string(run.Status),
		input,
		normalizeTime(run.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repo.ErrNotFound
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *RunStore) Get(ctx context.Context, id string) (domain.Run, error) {
	if s == nil || s.db == nil {
		return domain.Run{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Run{}, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectRunColumns+` FROM runs WHERE id = $1`,
		id,
	)
	return scanRun(rowScanner{row})
}

func (s *RunStore) List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}

	query := `SELECT ` + selectRunColumns + ` FROM runs`
	args := make([]any, 0, 3)
	if promptID := strings.TrimSpace(filter.PromptID); promptID != "" {
		args = append(args, promptID)
		query += fmt.Sprintf(" WHERE prompt_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *RunStore) ClaimOldestQueued(ctx context.Context) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("run store not initialized")
	}
	var id string
	err := s.db.QueryRowContext(ctx, claimRunQuery).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("claim run: %w", err)
	}
	return id, true, nil
}

func (s *RunStore) GetForExecution(ctx context.Context, id string) (repo.ClaimedRun, error) {
	if s == nil || s.db == nil {
		return repo.ClaimedRun{}, fmt.Errorf("run store not initialized")
	}
	var claimed repo.ClaimedRun
	var inputJSON []byte
	row := s.db.QueryRowContext(ctx, runForExecutionQuery, strings.TrimSpace(id))
	if err := row.Scan(
		&claimed.Run.ID,
		&claimed.Run.PromptID,
		&claimed.Run.PromptVersion,
		&claimed.Run.Status,
		&inputJSON,
		&claimed.Content,
	); err != nil {
		return repo.ClaimedRun{}, handleNotFound(err)
	}
	input, err := decodeParameters(inputJSON)
	if err != nil {
		return repo.ClaimedRun{}, fmt.Errorf("decode input: %w", err)
	}
	claimed.Run.Input = input
	return claimed, nil
}

func (s *RunStore) MarkSucceeded(ctx context.Context, id, output string) error {
	return s.finish(ctx, markSucceededQuery, id, output)
}

func (s *RunStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	return s.finish(ctx, markFailedQuery, id, errMsg)
}

// finish writes a terminal outcome. The claim already serialized ownership,
// so the status predicate is a defensive guard: zero rows means the row was
// touched by someone other than the claiming worker.
func (s *RunStore) finish(ctx context.Context, query, id, value string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	result, err := s.db.ExecContext(ctx, query, strings.TrimSpace(id), value)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not in running state: %w", id, repo.ErrInconsistent)
	}
	return nil
}

func (s *RunStore) Requeue(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	result, err := s.db.ExecContext(ctx, requeueRunQuery, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("requeue run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue run: %w", err)
	}
	if affected == 0 {
		return repo.ErrConflict
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// rowScanner adapts *sql.Row to the rows scanner shape.
type rowScanner struct {
	row *sql.Row
}

func (r rowScanner) Scan(dest ...any) error {
	return r.row.Scan(dest...)
}

func scanRun(sc scanner) (domain.Run, error) {
	var run domain.Run
	var inputJSON []byte
	var output sql.NullString
	var errMsg sql.NullString
	var startedAt sql.NullTime
	var finishedAt sql.NullTime
	if err := sc.Scan(
		&run.ID,
		&run.PromptID,
		&run.PromptVersion,
		&run.Status,
		&inputJSON,
		&output,
		&errMsg,
		&run.CreatedAt,
		&startedAt,
		&finishedAt,
	); err != nil {
		return domain.Run{}, handleNotFound(err)
	}
	input, err := decodeParameters(inputJSON)
	if err != nil {
		return domain.Run{}, fmt.Errorf("decode input: %w", err)
	}
	run.Input = input
	if output.Valid {
		run.Output = output.String
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if startedAt.Valid {
		started := startedAt.Time.UTC()
		run.StartedAt = &started
	}
	if finishedAt.Valid {
		finished := finishedAt.Time.UTC()
		run.FinishedAt = &finished
	}
	return run, nil
}
