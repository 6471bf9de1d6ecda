package publisher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/anicoll/airquality-integration/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

type archive interface {
	// WriteBatch stores the batch and returns the number of rows written.
	WriteBatch(ctx context.Context, batch *model.MeasurementBatch) (int64, error)
}

// Publisher fans a persisted batch out to every registered archive, in
// registration order.
type Publisher struct {
	names    []string
	archives map[string]archive
	logger   *zap.Logger
}

func New(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.L()
	}
	return &Publisher{
		archives: make(map[string]archive),
		logger:   logger,
	}
}

func (p *Publisher) RegisterPublisher(name string, a archive) error {
	if _, ok := p.archives[name]; ok {
		return fmt.Errorf("%w: %s", errAlreadyRegistered, name)
	}
	p.archives[name] = a
	p.names = append(p.names, name)
	return nil
}

func (p *Publisher) Len() int {
	return len(p.names)
}

// Publish writes batch to every archive. All archives are attempted; the
// returned error joins every failure.
func (p *Publisher) Publish(ctx context.Context, batch *model.MeasurementBatch) error {
	var errs []error
	for _, name := range p.names {
		n, err := p.archives[name].WriteBatch(ctx, batch)
		if err != nil {
			p.logger.Error("failed to archive batch", zap.Error(err), zap.String("publisher", name), zap.String("station", batch.Station))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		p.logger.Debug("archived batch", zap.Int64("rows", n), zap.String("publisher", name), zap.String("station", batch.Station))
	}
	return errors.Join(errs...)
}
