// Package enrich adds road-distance columns to a facility table.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/road-distance-cli/internal/facility"
	"github.com/sells-group/road-distance-cli/internal/model"
	"github.com/sells-group/road-distance-cli/internal/resilience"
)

// DistanceClient returns the road distance between two coordinates.
type DistanceClient interface {
	RoadDistance(ctx context.Context, origin, destination model.Coordinate) (float64, error)
}

// Progress receives one increment per completed distance lookup.
type Progress interface {
	Add(n int) error
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithWorkers sets how many lookups may be in flight. Each worker is
// throttled independently.
func WithWorkers(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithInterval sets the minimum spacing between a worker's requests.
func WithInterval(d time.Duration) Option {
	return func(e *Enricher) {
		e.interval = d
	}
}

// WithRetryPolicy retries transient lookup failures.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(e *Enricher) {
		e.retry = p
	}
}

// WithLogger scopes the enricher's logging.
func WithLogger(log *zap.Logger) Option {
	return func(e *Enricher) {
		e.log = log
	}
}

// WithProgress reports each completed lookup to p.
func WithProgress(p Progress) Option {
	return func(e *Enricher) {
		e.progress = p
	}
}

// Enricher measures every facility against every reference location.
type Enricher struct {
	client    DistanceClient
	refs      []model.ReferenceLocation
	inputPath string

	workers  int
	interval time.Duration
	retry    resilience.RetryPolicy
	log      *zap.Logger
	progress Progress
}

// DefaultInterval is the spacing between requests when none is configured.
const DefaultInterval = 2 * time.Second

// New creates an Enricher reading facilities from inputPath.
func New(client DistanceClient, refs []model.ReferenceLocation, inputPath string, opts ...Option) *Enricher {
	e := &Enricher{
		client:    client,
		refs:      append([]model.ReferenceLocation(nil), refs...),
		inputPath: inputPath,
		workers:   1,
		interval:  DefaultInterval,
		retry:     resilience.NoRetry(),
		log:       zap.L(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enrich loads the facility table and appends a road_distance_<name>
// column for each reference location, in reference order.
func (e *Enricher) Enrich(ctx context.Context) (*facility.Table, error) {
	e.log.Info("getting facility location data", zap.String("path", e.inputPath))

	t, err := facility.Load(e.inputPath)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: load facilities")
	}

	if err := e.EnrichTable(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// EnrichTable adds the distance columns to t. On error t is unchanged.
func (e *Enricher) EnrichTable(ctx context.Context, t *facility.Table) error {
	coords, err := t.Coordinates()
	if err != nil {
		return eris.Wrap(err, "enrich: read coordinates")
	}

	start := time.Now()
	distances, err := e.lookup(ctx, coords)
	if err != nil {
		return err
	}

	missing := 0
	for i, ref := range e.refs {
		for _, d := range distances[i] {
			if model.IsMissing(d) {
				missing++
			}
		}
		if err := t.SetDistances(ref.Column(), distances[i]); err != nil {
			return eris.Wrapf(err, "enrich: set column for %s", ref.Name)
		}
	}

	e.log.Info("road distances complete",
		zap.Int("rows", t.Len()),
		zap.Int("columns", t.Width()),
		zap.Int("lookups", len(coords)*len(e.refs)),
		zap.Int("missing", missing),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// cell addresses one (reference, row) lookup.
type cell struct {
	ref int
	row int
}

// lookup resolves every (reference, row) distance. Cells are dispatched
// reference-major in row order; results are stored by index so the output
// does not depend on the worker count.
func (e *Enricher) lookup(ctx context.Context, coords []model.Coordinate) ([][]float64, error) {
	out := make([][]float64, len(e.refs))
	for i := range out {
		out[i] = make([]float64, len(coords))
	}

	total := len(e.refs) * len(coords)
	if total == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	cells := make(chan cell)

	g.Go(func() error {
		defer close(cells)
		for ri, ref := range e.refs {
			e.log.Info("getting road distances",
				zap.String("reference", ref.Name),
				zap.Int("facilities", len(coords)),
			)
			for row := range coords {
				select {
				case cells <- cell{ref: ri, row: row}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		return nil
	})

	for w := 0; w < min(e.workers, total); w++ {
		throttle := resilience.NewThrottle(e.interval)
		g.Go(func() error {
			for c := range cells {
				ref := e.refs[c.ref]
				d, err := resilience.DoVal(gctx, e.retry, func(ctx context.Context) (float64, error) {
					return resilience.Call(ctx, throttle, func(ctx context.Context) (float64, error) {
						return e.client.RoadDistance(ctx, ref.Coordinate(), coords[c.row])
					})
				})
				if err != nil {
					return eris.Wrapf(err, "enrich: %s to row %d", ref.Name, c.row+1)
				}
				out[c.ref][c.row] = d

				if e.progress != nil {
					_ = e.progress.Add(1)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
