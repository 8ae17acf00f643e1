package bootstrap

import (
	"context"
	"errors"

	"github.com/styxgzi/nervesx-bot/internal/logging"
)

// Shutdown stops intake first, then drains background work, then closes the
// stores. It keeps going after a failed step and returns every error.
func Shutdown(ctx context.Context, c *Components) error {
	logging.Info("Starting graceful shutdown...")
	var errs []error

	if c.Session != nil {
		logging.Info("Closing Discord session...")
		errs = append(errs, c.Session.Close())
	}

	if c.Pool != nil {
		logging.Info("Draining worker pool...")
		errs = append(errs, c.Pool.Stop(ctx))
	}

	if c.Sink != nil {
		logging.Info("Flushing log sink...")
		c.Sink.Wait()
	}

	if c.Exporter != nil {
		logging.Info("Stopping metrics server...")
		errs = append(errs, c.Exporter.Shutdown(ctx))
	}

	if c.Watchdog != nil {
		logging.Info("Stopping watchdog...")
		c.Watchdog.Stop()
	}

	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}

	logging.Info("Graceful shutdown complete")
	errs = append(errs, logging.Close())
	return errors.Join(errs...)
}
