package filterpreset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "tsgate/pkg/errors"
)

// Repository is the Postgres-backed CRUD surface for presets, modeled on
// the teacher's filtering-rule repository.
type Repository interface {
	Create(ctx context.Context, preset *Preset) error
	List(ctx context.Context) ([]Preset, error)
	Get(ctx context.Context, id string) (*Preset, error)
	GetByName(ctx context.Context, name string) (*Preset, error)
	Update(ctx context.Context, preset *Preset) error
	Delete(ctx context.Context, id string) error
}

type postgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, preset *Preset) error {
	if preset.ID == "" {
		preset.ID = uuid.New().String()
	}
	now := time.Now()
	preset.CreatedAt = now
	preset.UpdatedAt = now

	query := `
		INSERT INTO filter_presets (id, name, expression, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		preset.ID, preset.Name, preset.Expression, preset.Enabled, preset.CreatedAt, preset.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apperrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("preset with name '%s' already exists", preset.Name))
		}
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return apperrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("preset with name '%s' already exists", preset.Name))
		}
		return fmt.Errorf("failed to create preset: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id string) (*Preset, error) {
	query := `
		SELECT id, name, expression, enabled, created_at, updated_at
		FROM filter_presets
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	var p Preset
	err := row.Scan(&p.ID, &p.Name, &p.Expression, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preset: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) GetByName(ctx context.Context, name string) (*Preset, error) {
	query := `
		SELECT id, name, expression, enabled, created_at, updated_at
		FROM filter_presets
		WHERE name = $1
	`
	row := r.db.QueryRowContext(ctx, query, name)
	var p Preset
	err := row.Scan(&p.ID, &p.Name, &p.Expression, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preset by name: %w", err)
	}
	return &p, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Preset, error) {
	query := `
		SELECT id, name, expression, enabled, created_at, updated_at
		FROM filter_presets
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	defer rows.Close()

	var presets []Preset
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}
		var p Preset
		if err := rows.Scan(&p.ID, &p.Name, &p.Expression, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preset: %w", err)
		}
		presets = append(presets, p)
	}
	return presets, nil
}

func (r *postgresRepository) Update(ctx context.Context, preset *Preset) error {
	preset.UpdatedAt = time.Now()

	query := `
		UPDATE filter_presets
		SET name = $1, expression = $2, enabled = $3, updated_at = $4
		WHERE id = $5
	`
	res, err := r.db.ExecContext(ctx, query, preset.Name, preset.Expression, preset.Enabled, preset.UpdatedAt, preset.ID)
	if err != nil {
		return fmt.Errorf("failed to update preset: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("preset not found")
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM filter_presets WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("preset not found")
	}
	return nil
}
