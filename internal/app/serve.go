package app

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	mcpserver "hmdoc/internal/mcp"
)

// ServeMCP runs the MCP server over in/out until ctx is done. Publish
// schedules and the import watcher run alongside it.
func (a *App) ServeMCP(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := a.startBackground(ctx); err != nil {
		return err
	}

	srv := mcpserver.New(mcpserver.Deps{
		Logger:    a.logger,
		Codec:     a.codec,
		Documents: a.documents,
		Blocks:    a.blocks,
		Publisher: a.publisher,
	})

	return srv.Listen(ctx, in, out)
}

// Watch runs publish schedules and the import watcher until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	if a.publisher == nil && a.watcher == nil {
		return errors.New("nothing to watch: configure publish schedules or import_dir")
	}
	if err := a.startBackground(ctx); err != nil {
		return err
	}
	a.logger.Info("watching")
	<-ctx.Done()
	a.logger.Info("watch_stopped", zap.Error(context.Cause(ctx)))
	return nil
}

func (a *App) startBackground(ctx context.Context) error {
	if a.publisher != nil {
		if err := a.publisher.StartSchedules(ctx, a.schedules()); err != nil {
			return err
		}
	} else if len(a.cfg.Publish.Schedules) > 0 {
		a.logger.Warn("publish_schedules_ignored", zap.String("reason", "no publish targets"))
	}
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}
