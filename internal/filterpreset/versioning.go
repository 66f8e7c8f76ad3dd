package filterpreset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VersioningRepository stores one PresetVersion snapshot per create/update
// and one AuditLog entry per create/update/delete, mirroring the teacher's
// rule-versioning split between the working table and its history.
type VersioningRepository interface {
	CreateVersion(ctx context.Context, version *PresetVersion) error
	GetVersions(ctx context.Context, presetID string) ([]PresetVersion, error)
	GetNextVersion(ctx context.Context, presetID string) (int, error)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	GetAuditLogs(ctx context.Context, presetID *string, limit int) ([]AuditLog, error)
}

type postgresVersioningRepository struct {
	db *sql.DB
}

func NewVersioningRepository(db *sql.DB) VersioningRepository {
	return &postgresVersioningRepository{db: db}
}

func (r *postgresVersioningRepository) CreateVersion(ctx context.Context, version *PresetVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO filter_preset_versions (id, preset_id, data, version, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, version.ID, version.PresetID, version.Data, version.Version, version.ChangedBy, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create preset version: %w", err)
	}
	return nil
}

func (r *postgresVersioningRepository) GetVersions(ctx context.Context, presetID string) ([]PresetVersion, error) {
	query := `
		SELECT id, preset_id, data, version, changed_by, created_at
		FROM filter_preset_versions
		WHERE preset_id = $1
		ORDER BY version DESC
	`
	rows, err := r.db.QueryContext(ctx, query, presetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query preset versions: %w", err)
	}
	defer rows.Close()

	var versions []PresetVersion
	for rows.Next() {
		var v PresetVersion
		if err := rows.Scan(&v.ID, &v.PresetID, &v.Data, &v.Version, &v.ChangedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preset version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func (r *postgresVersioningRepository) GetNextVersion(ctx context.Context, presetID string) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM filter_preset_versions WHERE preset_id = $1`
	var next int
	if err := r.db.QueryRowContext(ctx, query, presetID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next version: %w", err)
	}
	return next, nil
}

func (r *postgresVersioningRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	query := `
		INSERT INTO filter_preset_audit (id, preset_id, action, old_value, new_value, changed_by, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, log.ID, log.PresetID, log.Action, toJSON(log.OldValue), toJSON(log.NewValue), log.ChangedBy, log.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create preset audit log: %w", err)
	}
	return nil
}

func (r *postgresVersioningRepository) GetAuditLogs(ctx context.Context, presetID *string, limit int) ([]AuditLog, error) {
	var rows *sql.Rows
	var err error
	if presetID != nil {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, preset_id, action, old_value, new_value, changed_by, timestamp
			FROM filter_preset_audit
			WHERE preset_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		`, *presetID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, preset_id, action, old_value, new_value, changed_by, timestamp
			FROM filter_preset_audit
			ORDER BY timestamp DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query preset audit logs: %w", err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var l AuditLog
		var oldValue, newValue []byte
		if err := rows.Scan(&l.ID, &l.PresetID, &l.Action, &oldValue, &newValue, &l.ChangedBy, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan preset audit log: %w", err)
		}
		l.OldValue = fromJSON(oldValue)
		l.NewValue = fromJSON(newValue)
		logs = append(logs, l)
	}
	return logs, nil
}
