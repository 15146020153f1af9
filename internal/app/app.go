package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"toolroom/internal/config"
	"toolroom/internal/db"
	"toolroom/internal/engine"
	"toolroom/internal/migrate"
	"toolroom/internal/notify"
	"toolroom/internal/repo"
)

// Open prepares the workspace: database, migrations, config. The config file
// wins when present; otherwise the copy stored in the database; otherwise
// defaults are seeded.
func Open(ctx context.Context, workspace, workshopID string) (*sql.DB, engine.Engine, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, engine.Engine{}, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, engine.Engine{}, fmt.Errorf("migrate: %w", err)
	}
	r := repo.Repo{DB: conn}
	cfg, err := resolveConfig(ctx, workspace, workshopID, r)
	if err != nil {
		conn.Close()
		return nil, engine.Engine{}, err
	}
	eng := engine.New(conn, cfg)
	eng.Notifier = notify.StoreNotifier{Repo: r}
	return conn, eng, nil
}

func resolveConfig(ctx context.Context, workspace, workshopID string, r repo.Repo) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		if workshopID != "" {
			cfg.Workshop.ID = workshopID
		}
		if err := r.UpsertSettings(ctx, cfg.Workshop.ID, cfg); err != nil {
			return nil, fmt.Errorf("store settings: %w", err)
		}
		return cfg, nil
	}
	if workshopID == "" {
		workshopID = "default"
	}
	cfg, err = r.GetSettings(ctx, workshopID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		cfg = config.Default(workshopID)
		if err := r.UpsertSettings(ctx, workshopID, cfg); err != nil {
			return nil, fmt.Errorf("seed settings: %w", err)
		}
	}
	return cfg, nil
}
