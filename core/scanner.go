package core

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/EmmaVellard/SolarConflux/internal/logging"
	"github.com/EmmaVellard/SolarConflux/model"
)

const tracerName = "github.com/EmmaVellard/SolarConflux/core"

// MetricsRecorder receives scan measurements. Implementations must be safe
// for concurrent use because modes are scanned in parallel.
type MetricsRecorder interface {
	SetScanShape(bodies, steps int)
	ObserveModeScan(mode string, elapsed time.Duration, records int)
	RecordModeFailure(mode, reason string)
}

// Result is the outcome of one scan.
type Result struct {
	// Records holds the emitted intervals per successfully scanned mode, in
	// emission order. A mode that ran without matches maps to an empty slice.
	Records map[model.AlignmentMode][]model.AlignmentRecord
	// Failures holds modes that were rejected, keyed by the requested string.
	Failures map[string]error
	Bodies   []string
	Times    []time.Time
}

// Sorted flattens all records across modes, ordered by start time. Ties keep
// the order of model.Modes and then emission order.
func (r *Result) Sorted() []model.AlignmentRecord {
	var out []model.AlignmentRecord
	for _, mode := range model.Modes {
		out = append(out, r.Records[mode]...)
	}
	model.SortRecords(out)
	return out
}

// Scanner runs the alignment pipeline for a set of modes over a set of
// trajectories. A Scanner holds no per-scan state and may be reused
// concurrently.
type Scanner struct {
	params  Params
	workers int
	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the scanner's base logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsRecorder wires a metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithWorkers bounds how many goroutines build groups per mode. Values < 1
// fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scanner) { s.workers = n }
}

// NewScanner constructs a Scanner using params for every mode.
func NewScanner(params Params, opts ...Option) *Scanner {
	s := &Scanner{
		params: params,
		log:    logging.Noop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s
}

// Params returns the parameters the scanner applies.
func (s *Scanner) Params() Params { return s.params }

// Scan validates trajectories, then scans each requested mode. A shape error
// or context cancellation aborts the whole scan; unknown modes and invalid
// mode parameters are reported in Result.Failures and the remaining modes
// still run.
func (s *Scanner) Scan(ctx context.Context, trajectories map[string]model.Trajectory, modes []string) (*Result, error) {
	ctx, scanID := logging.EnsureScanID(ctx)
	log := logging.FromContext(ctx, s.log).With(logging.String("scan_id", scanID))

	if err := ValidateTrajectories(trajectories); err != nil {
		log.Warn(ctx, "rejecting trajectories", logging.Err(err))
		return nil, err
	}

	bodies := SortedBodies(trajectories)
	times := trajectories[bodies[0]].Times()
	proj := ProjectAll(trajectories)
	if s.metrics != nil {
		s.metrics.SetScanShape(len(bodies), len(times))
	}

	result := &Result{
		Records:  make(map[model.AlignmentMode][]model.AlignmentRecord),
		Failures: make(map[string]error),
		Bodies:   bodies,
		Times:    times,
	}

	var classifiers []*Classifier
	requested := make(map[model.AlignmentMode]struct{})
	for _, raw := range modes {
		mode, ok := model.ParseMode(raw)
		if !ok {
			s.fail(ctx, log, result, raw, ErrUnknownMode, "unknown")
			continue
		}
		if _, dup := requested[mode]; dup {
			continue
		}
		requested[mode] = struct{}{}
		c, err := NewClassifier(mode, s.params)
		if err != nil {
			s.fail(ctx, log, result, string(mode), err, "configuration")
			continue
		}
		classifiers = append(classifiers, c)
	}

	records := make([][]model.AlignmentRecord, len(classifiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range classifiers {
		g.Go(func() error {
			recs, err := s.scanMode(gctx, log, c, bodies, times, proj)
			if err != nil {
				return err
			}
			records[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, c := range classifiers {
		recs := records[i]
		if recs == nil {
			recs = []model.AlignmentRecord{}
		}
		result.Records[c.Mode()] = recs
	}
	return result, nil
}

func (s *Scanner) fail(ctx context.Context, log logging.Logger, result *Result, mode string, err error, reason string) {
	merr := &ModeError{Mode: mode, Err: err}
	result.Failures[mode] = merr
	log.Warn(ctx, "skipping alignment mode", logging.String("mode", mode), logging.Err(err))
	if s.metrics != nil {
		s.metrics.RecordModeFailure(mode, reason)
	}
}

func (s *Scanner) scanMode(ctx context.Context, log logging.Logger, c *Classifier, bodies []string, times []time.Time, proj Projections) ([]model.AlignmentRecord, error) {
	mode := c.Mode()
	ctx, span := s.tracer.Start(ctx, "scan/"+string(mode), trace.WithAttributes(
		attribute.String("alignment.mode", string(mode)),
		attribute.Int("alignment.bodies", len(bodies)),
		attribute.Int("alignment.steps", len(times)),
	))
	defer span.End()

	start := time.Now()
	groups, err := s.buildAllGroups(ctx, c, bodies, len(times), proj)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var (
		open    OpenIntervals
		records []model.AlignmentRecord
	)
	for i, at := range times {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return nil, err
		}
		var closed []model.AlignmentRecord
		open, closed = Advance(open, groups[i], at, mode)
		records = append(records, closed...)
	}
	records = append(records, Flush(open, mode)...)

	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("alignment.records", len(records)))
	if s.metrics != nil {
		s.metrics.ObserveModeScan(string(mode), elapsed, len(records))
	}
	if len(records) == 0 {
		log.Info(ctx, "no matches", logging.String("mode", string(mode)), logging.Duration("elapsed", elapsed))
	} else {
		log.Info(ctx, "matches found",
			logging.String("mode", string(mode)),
			logging.Int("matches", len(records)),
			logging.Duration("elapsed", elapsed),
		)
	}
	return records, nil
}

// buildAllGroups evaluates every timestep independently on up to s.workers
// goroutines. Each worker owns a contiguous block of steps, so the returned
// slice is already in timestep order.
func (s *Scanner) buildAllGroups(ctx context.Context, c *Classifier, bodies []string, steps int, proj Projections) ([][]model.Group, error) {
	groups := make([][]model.Group, steps)
	workers := min(s.workers, steps)
	if workers <= 1 {
		for i := range steps {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			groups[i] = BuildGroups(i, bodies, proj, c)
		}
		return groups, nil
	}

	chunk := (steps + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < steps; lo += chunk {
		hi := min(lo+chunk, steps)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				groups[i] = BuildGroups(i, bodies, proj, c)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}
