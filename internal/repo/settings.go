package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"toolroom/internal/config"
)

// UpsertSettings stores the workshop config in the database so every process
// sharing the workspace sees the same fine rate and rental duration.
func (r Repo) UpsertSettings(ctx context.Context, workshopID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Workshop.ID = workshopID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.DB.ExecContext(ctx, `INSERT INTO settings(workshop_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(workshop_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`,
		workshopID, string(payload), now, now)
	return err
}

func (r Repo) GetSettings(ctx context.Context, workshopID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM settings WHERE workshop_id=?`, workshopID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Workshop.ID == "" {
		cfg.Workshop.ID = workshopID
	}
	return &cfg, cfg.Validate()
}
