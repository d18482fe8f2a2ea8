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
	upsertTagQuery = `INSERT INTO tags (id, name, created_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (name) DO NOTHING`

	attachTagQuery = `INSERT INTO prompt_tags (prompt_id, tag_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING`

	detachTagQuery = `DELETE FROM prompt_tags pt
		USING tags t
		WHERE pt.tag_id = t.id
		  AND pt.prompt_id = $1
		  AND t.name = $2`
)

type TagStore struct {
	db *sql.DB
}

func NewTagStore(db *sql.DB) *TagStore {
	if db == nil {
		return nil
	}
	return &TagStore{db: db}
}

// Attach tags a prompt, creating the tag on first use. Re-attaching an
// existing tag is a no-op.
func (s *TagStore) Attach(ctx context.Context, promptID, tagName string) (domain.Tag, error) {
	if s == nil || s.db == nil {
		return domain.Tag{}, fmt.Errorf("tag store not initialized")
	}
	candidate := domain.Tag{ID: domain.NewTagID(), Name: strings.TrimSpace(tagName)}
	if err := candidate.Validate(); err != nil {
		return domain.Tag{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertTagQuery, candidate.ID, candidate.Name, normalizeTime(candidate.CreatedAt)); err != nil {
		return domain.Tag{}, fmt.Errorf("upsert tag: %w", err)
	}

	var tag domain.Tag
	row := tx.QueryRowContext(ctx, `SELECT id, name, created_at FROM tags WHERE name = $1`, candidate.Name)
	if err := row.Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
		return domain.Tag{}, handleNotFound(err)
	}

	if _, err := tx.ExecContext(ctx, attachTagQuery, strings.TrimSpace(promptID), tag.ID); err != nil {
		if isForeignKeyViolation(err) {
			return domain.Tag{}, repo.ErrNotFound
		}
		return domain.Tag{}, fmt.Errorf("attach tag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Tag{}, fmt.Errorf("commit: %w", err)
	}
	return tag, nil
}

func (s *TagStore) Detach(ctx context.Context, promptID, tagName string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("tag store not initialized")
	}
	result, err := s.db.ExecContext(ctx, detachTagQuery, strings.TrimSpace(promptID), strings.TrimSpace(tagName))
	if err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *TagStore) List(ctx context.Context) ([]domain.Tag, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("tag store not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	return collectTags(rows)
}

func (s *TagStore) ListForPrompt(ctx context.Context, promptID string) ([]domain.Tag, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("tag store not initialized")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.id, t.name, t.created_at
		 FROM tags t
		 JOIN prompt_tags pt ON pt.tag_id = t.id
		 WHERE pt.prompt_id = $1
		 ORDER BY t.name ASC`,
		strings.TrimSpace(promptID),
	)
	if err != nil {
		return nil, fmt.Errorf("list prompt tags: %w", err)
	}
	defer rows.Close()
	return collectTags(rows)
}

func collectTags(rows *sql.Rows) ([]domain.Tag, error) {
	tags := make([]domain.Tag, 0)
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}
