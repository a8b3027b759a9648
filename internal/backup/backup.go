// Package backup defines the collaborator that scheduled backups call out
// to. The engine only decides WHEN a backup runs; producing and shipping
// the archive lives behind this interface.
package backup

import (
	"context"

	"go.uber.org/zap"
)

type Exporter interface {
	// Export runs one backup for the store. Options carry the schedule's
	// opaque option strings through unchanged.
	Export(ctx context.Context, storeID string, options []string) error
}

// LogExporter is the default exporter when no real backend is configured.
// It records that a backup would have run and succeeds.
type LogExporter struct {
	Log *zap.Logger
}

func (e LogExporter) Export(_ context.Context, storeID string, options []string) error {
	logger := e.Log
	if logger == nil {
		logger = zap.L()
	}
	logger.Info("backup export triggered",
		zap.String("store_id", storeID),
		zap.Strings("options", options))
	return nil
}
