package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/metrics"
)

// Source provides the endpoints to persist.
type Source interface {
	List() []endpoint.Endpoint
}

// Writer serializes snapshot writes. The snapshot is taken only once the
// write lock is held, so an older copy never overwrites a newer one.
type Writer struct {
	mu      sync.Mutex
	gw      Gateway
	src     Source
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Writer. Pass nil logger to use the default logger.
func NewWriter(gw Gateway, src Source, m *metrics.Metrics, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{gw: gw, src: src, metrics: m, logger: logger}
}

// Persist saves the current state of the source.
func (w *Writer) Persist(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	eps := w.src.List()
	if err := w.gw.Save(ctx, eps); err != nil {
		w.metrics.IncPersistErrors()
		w.logger.Error("persisting snapshot", "endpoints", len(eps), "error", err)
		return fmt.Errorf("persisting snapshot: %w", err)
	}
	w.logger.Debug("snapshot persisted", "endpoints", len(eps))
	return nil
}
