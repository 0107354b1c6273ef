package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shelfmark/shelfmark-engine/pkg/database"
)

// ConfigValueRepository reads the app-wide and user-scoped configuration
// values that sandbox scripts can request through host callbacks. Values are
// administered out of band; this pipeline only ever reads them.
type ConfigValueRepository interface {
	// GetAppValue returns the app-wide value for key, with found=false when absent.
	GetAppValue(ctx context.Context, key string) (json.RawMessage, bool, error)
	// GetUserValue returns the user-scoped value for key, with found=false when absent.
	GetUserValue(ctx context.Context, userID, key string) (json.RawMessage, bool, error)
}

type configValueRepository struct {
	db *database.DB
}

// NewConfigValueRepository creates a new ConfigValueRepository.
func NewConfigValueRepository(db *database.DB) ConfigValueRepository {
	return &configValueRepository{db: db}
}

var _ ConfigValueRepository = (*configValueRepository)(nil)

func (r *configValueRepository) GetAppValue(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value []byte
	err := r.db.QueryRow(ctx, `SELECT value FROM app_config_values WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get app config value: %w", err)
	}

	return json.RawMessage(value), true, nil
}

func (r *configValueRepository) GetUserValue(ctx context.Context, userID, key string) (json.RawMessage, bool, error) {
	var value []byte
	err := r.db.QueryRow(ctx, `SELECT value FROM user_config_values WHERE user_id = $1 AND key = $2`, userID, key).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get user config value: %w", err)
	}

	return json.RawMessage(value), true, nil
}
