package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hmdoc/internal/config"
	"hmdoc/internal/inline"
	"hmdoc/internal/publish"
	"hmdoc/internal/secret"
	"hmdoc/internal/service"
	"hmdoc/internal/storage"
)

// shutdownTimeout bounds how long Shutdown waits for in-flight publishes.
const shutdownTimeout = 10 * time.Second

// App wires configuration, storage and services together. Every command
// starts one App and shuts it down when done.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	secrets *secret.Resolver

	db        *storage.DB
	codec     *inline.Codec
	documents *service.DocumentService
	blocks    *service.BlockService
	targets   []publish.Target
	publisher *service.PublishService
	watcher   *service.ImportWatcher
}

// New creates a new App.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger, secrets: secret.NewResolver()}
}

// Startup opens the database and publish targets and builds the services.
func (a *App) Startup(ctx context.Context) error {
	db, err := storage.New(a.cfg.DBPath, a.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db

	docStore := storage.NewDocumentStore(db)
	blockStore := storage.NewBlockStore(db)
	revisions := storage.NewRevisionStore(db)
	emitter := service.LogEmitter{Logger: a.logger.Named("events")}

	a.codec = inline.New(inline.WithOffsetUnit(a.cfg.Unit()))
	a.documents = service.NewDocumentService(docStore, blockStore, revisions, a.codec, db.DataDir(), emitter, a.logger)
	a.blocks = service.NewBlockService(docStore, blockStore, revisions, a.codec, emitter, a.logger)

	targetCfgs, err := resolvePasswords(a.cfg.Publish.Targets, a.secrets)
	if err != nil {
		db.Close()
		return err
	}
	targets, err := publish.OpenAll(targetCfgs, a.logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("open publish targets: %w", err)
	}
	a.targets = targets
	for _, t := range targets {
		if err := t.Ping(ctx); err != nil {
			a.logger.Warn("publish_target_unreachable", zap.String("target", t.Name()), zap.Error(err))
		}
	}
	if len(targets) > 0 {
		a.publisher = service.NewPublishService(a.documents, storage.NewPublishRunStore(db), targets, emitter, a.logger)
	}

	if a.cfg.ImportDir != "" {
		a.watcher = service.NewImportWatcher(a.documents, a.cfg.ImportDir, a.logger)
	}

	a.logger.Info("app_started",
		zap.String("db", a.cfg.DBPath),
		zap.String("offset_unit", a.codec.Unit().String()),
		zap.Int("publish_targets", len(targets)),
	)
	return nil
}

// Shutdown stops background work and closes every resource. It is safe to
// call after a failed Startup.
func (a *App) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.publisher != nil {
		a.publisher.Stop(ctx)
	}
	for _, t := range a.targets {
		if err := t.Close(); err != nil {
			a.logger.Warn("publish_target_close_failed", zap.String("target", t.Name()), zap.Error(err))
		}
	}
	a.targets = nil
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	_ = a.logger.Sync()
}

func (a *App) Codec() *inline.Codec                { return a.codec }
func (a *App) Documents() *service.DocumentService { return a.documents }
func (a *App) Blocks() *service.BlockService       { return a.blocks }
func (a *App) Publisher() *service.PublishService  { return a.publisher }

// ErrNoPublishTargets is returned by publish commands when the config has
// no targets.
var ErrNoPublishTargets = errors.New("no publish targets configured")

// Publish publishes one document, or every document when documentID is
// empty.
func (a *App) Publish(ctx context.Context, documentID string, targets ...string) ([]string, error) {
	if a.publisher == nil {
		return nil, ErrNoPublishTargets
	}
	if documentID == "" {
		return nil, a.publisher.PublishAll(ctx)
	}
	runs, err := a.publisher.Publish(ctx, documentID, targets...)
	var lines []string
	for _, r := range runs {
		line := fmt.Sprintf("%s\t%s\t%d blocks", r.Target, r.Status, r.Blocks)
		if r.Error != "" {
			line += "\t" + r.Error
		}
		lines = append(lines, line)
	}
	return lines, err
}

// resolvePasswords replaces secret references in target passwords.
func resolvePasswords(cfgs []publish.TargetConfig, r *secret.Resolver) ([]publish.TargetConfig, error) {
	out := make([]publish.TargetConfig, len(cfgs))
	for i, c := range cfgs {
		pw, err := r.Resolve(c.Password)
		if err != nil {
			return nil, fmt.Errorf("publish target %s: %w", c.Name, err)
		}
		c.Password = pw
		out[i] = c
	}
	return out, nil
}

// schedules converts the configured cron entries.
func (a *App) schedules() []service.PublishSchedule {
	out := make([]service.PublishSchedule, 0, len(a.cfg.Publish.Schedules))
	for _, s := range a.cfg.Publish.Schedules {
		out = append(out, service.PublishSchedule{Cron: s.Cron, DocumentID: s.Document})
	}
	return out
}
