package rebuild

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/facetdex/internal/classify"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/filterdef"
	"github.com/kailas-cloud/facetdex/internal/domain/rules"
	"github.com/kailas-cloud/facetdex/internal/domain/taxonomy"
	"github.com/kailas-cloud/facetdex/internal/index"
	"github.com/kailas-cloud/facetdex/internal/metrics"
	"github.com/kailas-cloud/facetdex/internal/source"
)

// Config tunes the rebuild orchestrator.
type Config struct {
	Builder index.BuilderConfig
	// PhaseRetries is how often a failed phase is retried before the
	// rebuild is abandoned.
	PhaseRetries int
	// MinInterval rate-limits rebuild starts. Zero disables the limit.
	MinInterval time.Duration
}

// Report summarizes one rebuild attempt for the caller.
type Report struct {
	GenerationID   string                   `json:"generation_id"`
	Status         string                   `json:"status"`
	Items          int                      `json:"items"`
	PhaseDurations map[string]time.Duration `json:"phase_durations"`
	DeadRules      []classify.RuleStatus    `json:"dead_rules,omitempty"`
	UnknownCodes   []string                 `json:"unknown_codes,omitempty"`
}

// Rebuild statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Service orchestrates index rebuilds: one at a time, rate limited, with
// per-phase retries. A failed rebuild leaves the published generation
// untouched.
type Service struct {
	src       source.Source
	forest    *taxonomy.Forest
	ruleset   []rules.Rule
	defs      []filterdef.Definition
	publisher Publisher
	cfg       Config
	limiter   *rate.Limiter
	inflight  atomic.Bool
	logger    *zap.Logger
}

// New creates the rebuild service.
func New(
	src source.Source,
	forest *taxonomy.Forest,
	ruleset []rules.Rule,
	defs []filterdef.Definition,
	publisher Publisher,
	cfg Config,
	logger *zap.Logger,
) *Service {
	var limiter *rate.Limiter
	if cfg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return &Service{
		src:       src,
		forest:    forest,
		ruleset:   ruleset,
		defs:      defs,
		publisher: publisher,
		cfg:       cfg,
		limiter:   limiter,
		logger:    logger,
	}
}

// Rebuild builds a fresh generation from the source and publishes it on
// success. Concurrent calls beyond the first fail fast with
// domain.ErrRebuildInProgress.
func (s *Service) Rebuild(ctx context.Context) (Report, error) {
	if !s.inflight.CompareAndSwap(false, true) {
		return Report{}, domain.ErrRebuildInProgress
	}
	defer s.inflight.Store(false)

	if s.limiter != nil && !s.limiter.Allow() {
		return Report{}, domain.ErrRebuildThrottled
	}

	id := uuid.NewString()
	engine := classify.NewEngine(s.ruleset, s.forest)
	builder := index.NewBuilder(id, s.src, engine, s.forest, s.defs, s.cfg.Builder, s.logger)

	report := Report{
		GenerationID:   id,
		PhaseDurations: make(map[string]time.Duration, len(index.Phases)),
	}
	s.logger.Info("rebuild started", zap.String("generation_id", id))

	for _, phase := range index.Phases {
		elapsed, err := s.runPhase(ctx, builder, phase)
		report.PhaseDurations[phase] = elapsed
		if err != nil {
			report.Status = StatusFailed
			metrics.RebuildsTotal.WithLabelValues(StatusFailed).Inc()
			s.logger.Error("rebuild failed",
				zap.String("generation_id", id),
				zap.String("phase", phase),
				zap.Error(err),
			)
			return report, err
		}
	}

	gen, err := builder.Generation()
	if err != nil {
		report.Status = StatusFailed
		metrics.RebuildsTotal.WithLabelValues(StatusFailed).Inc()
		return report, err
	}
	s.publisher.Publish(gen)

	report.Status = StatusOK
	report.Items = gen.Len()
	report.DeadRules = gen.Report().DeadRules()
	report.UnknownCodes = gen.Report().UnknownCodes
	metrics.RebuildsTotal.WithLabelValues(StatusOK).Inc()
	metrics.GenerationItems.Set(float64(gen.Len()))

	s.logger.Info("rebuild published",
		zap.String("generation_id", id),
		zap.Int("items", gen.Len()),
		zap.Int("dead_rules", len(report.DeadRules)),
	)
	return report, nil
}

// runPhase executes one phase with retries and records its total duration.
func (s *Service) runPhase(ctx context.Context, builder *index.Builder, phase string) (time.Duration, error) {
	start := time.Now()
	var err error
	for attempt := 0; attempt <= s.cfg.PhaseRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = builder.Run(ctx, phase); err == nil {
			break
		}
		s.logger.Warn("rebuild phase attempt failed",
			zap.String("phase", phase),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	elapsed := time.Since(start)

	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	metrics.RebuildPhaseDuration.WithLabelValues(phase, status).Observe(elapsed.Seconds())
	return elapsed, err
}

// Running reports whether a rebuild is currently in flight.
func (s *Service) Running() bool { return s.inflight.Load() }
