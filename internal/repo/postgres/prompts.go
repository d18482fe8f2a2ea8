package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/danielwei123/llm-evals-platform/internal/domain"
	"github.com/danielwei123/llm-evals-platform/internal/repo"
)

const (
	insertPromptQuery = `INSERT INTO prompts (id, name, description, created_at, active_version)
		VALUES ($1,$2,$3,$4,$5)`

	insertPromptVersionQuery = `INSERT INTO prompt_versions (id, prompt_id, version, content, parameters, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`

	selectPromptColumns = `id, name, description, created_at, active_version`

	nextPromptVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1
		FROM prompt_versions WHERE prompt_id = $1`

	setActiveVersionQuery = `UPDATE prompts SET active_version = $2 WHERE id = $1`

	listPromptsQuery = `SELECT p.id, p.name, p.description, p.created_at, p.active_version,
			v.id, v.version, v.content, v.parameters, v.created_at
		FROM prompts p
		LEFT JOIN (
			SELECT prompt_id, MAX(version) AS max_version
			FROM prompt_versions
			GROUP BY prompt_id
		) lv ON lv.prompt_id = p.id
		LEFT JOIN prompt_versions v
			ON v.prompt_id = p.id AND v.version = lv.max_version`
)

type PromptStore struct {
	db *sql.DB
}

func NewPromptStore(db *sql.DB) *PromptStore {
	if db == nil {
		return nil
	}
	return &PromptStore{db: db}
}

func (s *PromptStore) CreateWithFirstVersion(ctx context.Context, prompt domain.Prompt, first domain.PromptVersion) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("prompt store not initialized")
	}
	if err := prompt.Validate(); err != nil {
		return err
	}
	if err := first.Validate(); err != nil {
		return err
	}
	if first.Version != 1 {
		return fmt.Errorf("first version must be 1, got %d", first.Version)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := normalizeTime(prompt.CreatedAt)
	_, err = tx.ExecContext(
		ctx,
		insertPromptQuery,
		strings.TrimSpace(prompt.ID),
		strings.TrimSpace(prompt.Name),
		nullIfEmpty(strings.TrimSpace(prompt.Description)),
		createdAt,
		prompt.ActiveVersion,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repo.ErrConflict
		}
		return fmt.Errorf("insert prompt: %w", err)
	}

	if err := insertVersion(ctx, tx, first); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertVersion(ctx context.Context, q DB, version domain.PromptVersion) error {
	params, err := encodeParameters(version.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	_, err = q.ExecContext(
		ctx,
		insertPromptVersionQuery,
		strings.TrimSpace(version.ID),
		strings.TrimSpace(version.PromptID),
		version.Version,
		version.Content,
		params,
		normalizeTime(version.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repo.ErrVersionTaken
		}
		if isForeignKeyViolation(err) {
			return repo.ErrNotFound
		}
		return fmt.Errorf("insert prompt version: %w", err)
	}
	return nil
}

func (s *PromptStore) Get(ctx context.Context, id string) (domain.Prompt, error) {
	if s == nil || s.db == nil {
		return domain.Prompt{}, fmt.Errorf("prompt store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Prompt{}, fmt.Errorf("prompt id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectPromptColumns+` FROM prompts WHERE id = $1`,
		id,
	)
	return scanPrompt(row)
}

func (s *PromptStore) GetByName(ctx context.Context, name string) (domain.Prompt, error) {
	if s == nil || s.db == nil {
		return domain.Prompt{}, fmt.Errorf("prompt store not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Prompt{}, fmt.Errorf("prompt name is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectPromptColumns+` FROM prompts WHERE name = $1`,
		name,
	)
	return scanPrompt(row)
}

func scanPrompt(row *sql.Row) (domain.Prompt, error) {
	var prompt domain.Prompt
	var description sql.NullString
	if err := row.Scan(&prompt.ID, &prompt.Name, &description, &prompt.CreatedAt, &prompt.ActiveVersion); err != nil {
		return domain.Prompt{}, handleNotFound(err)
	}
	if description.Valid {
		prompt.Description = description.String
	}
	return prompt, nil
}

func (s *PromptStore) List(ctx context.Context, filter repo.PromptFilter) ([]repo.PromptSummary, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("prompt store not initialized")
	}

	query := listPromptsQuery
	args := make([]any, 0, 3)

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		query += fmt.Sprintf(" WHERE (p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY p.created_at DESC"
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
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	summaries := make([]repo.PromptSummary, 0)
	for rows.Next() {
		var summary repo.PromptSummary
		var description sql.NullString
		var versionID sql.NullString
		var versionNum sql.NullInt64
		var content sql.NullString
		var paramsJSON []byte
		var versionCreatedAt sql.NullTime
		if err := rows.Scan(
			&summary.Prompt.ID,
			&summary.Prompt.Name,
			&description,
			&summary.Prompt.CreatedAt,
			&summary.Prompt.ActiveVersion,
			&versionID,
			&versionNum,
			&content,
			&paramsJSON,
			&versionCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		if description.Valid {
			summary.Prompt.Description = description.String
		}
		if versionID.Valid {
			params, err := decodeParameters(paramsJSON)
			if err != nil {
				return nil, fmt.Errorf("decode parameters: %w", err)
			}
			summary.LatestVersion = &domain.PromptVersion{
				ID:         versionID.String,
				PromptID:   summary.Prompt.ID,
				Version:    int(versionNum.Int64),
				Content:    content.String,
				Parameters: params,
				CreatedAt:  versionCreatedAt.Time.UTC(),
			}
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return summaries, nil
}

func (s *PromptStore) UpdateDescription(ctx context.Context, id, description string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("prompt store not initialized")
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE prompts SET description = $2 WHERE id = $1`,
		strings.TrimSpace(id),
		nullIfEmpty(strings.TrimSpace(description)),
	)
	if err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *PromptStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("prompt store not initialized")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = $1`, strings.TrimSpace(id))
	if err != nil {
		if isForeignKeyViolation(err) {
			return repo.ErrConflict
		}
		return fmt.Errorf("delete prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *PromptStore) InsertVersion(ctx context.Context, version domain.PromptVersion) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("prompt store not initialized")
	}
	if err := version.Validate(); err != nil {
		return err
	}
	return insertVersion(ctx, s.db, version)
}

func (s *PromptStore) NextVersion(ctx context.Context, promptID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("prompt store not initialized")
	}
	promptID = strings.TrimSpace(promptID)
	if promptID == "" {
		return 0, fmt.Errorf("prompt id is required")
	}
	var next int
	if err := s.db.QueryRowContext(ctx, nextPromptVersionQuery, promptID).Scan(&next); err != nil {
		return 0, fmt.Errorf("next prompt version: %w", err)
	}
	return next, nil
}

func (s *PromptStore) GetVersion(ctx context.Context, promptID string, version int) (domain.PromptVersion, error) {
	if s == nil || s.db == nil {
		return domain.PromptVersion{}, fmt.Errorf("prompt store not initialized")
	}
	var entry domain.PromptVersion
	var paramsJSON []byte
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, prompt_id, version, content, parameters, created_at
		 FROM prompt_versions
		 WHERE prompt_id = $1 AND version = $2`,
		strings.TrimSpace(promptID),
		version,
	)
	if err := row.Scan(&entry.ID, &entry.PromptID, &entry.Version, &entry.Content, &paramsJSON, &entry.CreatedAt); err != nil {
		return domain.PromptVersion{}, handleNotFound(err)
	}
	params, err := decodeParameters(paramsJSON)
	if err != nil {
		return domain.PromptVersion{}, fmt.Errorf("decode parameters: %w", err)
	}
	entry.Parameters = params
	return entry, nil
}

func (s *PromptStore) ListVersions(ctx context.Context, promptID string) ([]domain.PromptVersion, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("prompt store not initialized")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, prompt_id, version, content, parameters, created_at
		 FROM prompt_versions
		 WHERE prompt_id = $1
		 ORDER BY version DESC`,
		strings.TrimSpace(promptID),
	)
	if err != nil {
		return nil, fmt.Errorf("list prompt versions: %w", err)
	}
	defer rows.Close()

	versions := make([]domain.PromptVersion, 0)
	for rows.Next() {
		var entry domain.PromptVersion
		var paramsJSON []byte
		if err := rows.Scan(&entry.ID, &entry.PromptID, &entry.Version, &entry.Content, &paramsJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt version: %w", err)
		}
		params, err := decodeParameters(paramsJSON)
		if err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
		entry.Parameters = params
		versions = append(versions, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list prompt versions: %w", err)
	}
	return versions, nil
}

func (s *PromptStore) SetActiveVersion(ctx context.Context, promptID string, version int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("prompt store not initialized")
	}
	result, err := s.db.ExecContext(ctx, setActiveVersionQuery, strings.TrimSpace(promptID), version)
	if err != nil {
		return fmt.Errorf("set active version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set active version: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
