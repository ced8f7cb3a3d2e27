package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const defaultTenantSettingsTable = "tenant_settings"

// SettingsRepository reads raw tenant threshold overrides. The stored value
// is an arbitrary, possibly partial JSON object; interpreting it is the
// threshold resolver's job.
type SettingsRepository struct {
	db    DBTX
	table string
}

// NewSettingsRepository constructs a repository.
func NewSettingsRepository(db DBTX, opts ...SettingsOption) *SettingsRepository {
	repo := &SettingsRepository{db: db, table: defaultTenantSettingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SettingsOption configures the repository.
type SettingsOption func(*SettingsRepository)

// WithSettingsTable overrides the default table name.
func WithSettingsTable(table string) SettingsOption {
	return func(repo *SettingsRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ThresholdOverrides returns the tenant's alert threshold override map.
// A missing row or unparseable payload yields an empty map, never an error;
// malformed tenant configuration must not block alerting.
func (r *SettingsRepository) ThresholdOverrides(ctx context.Context, tenantID string) (map[string]any, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settings repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("settings repo: empty tenant id")
	}

	query := fmt.Sprintf(`
SELECT alert_thresholds
FROM %s
WHERE tenant_id = $1
LIMIT 1`, r.table)

	var payload []byte
	if err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	var overrides map[string]any
	if err := json.Unmarshal(payload, &overrides); err != nil {
		return nil, nil
	}
	return overrides, nil
}
