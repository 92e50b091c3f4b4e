// Package cleanup runs the periodic janitor work a homeserver
// accumulates: expired sessions and auth ceremonies in the database,
// consumed federation nonces, resumable gateway sessions past their
// TTL, idle rate limiter buckets, pending interactions, and event log
// entries outside the retention window.
package cleanup

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/eventlog"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/interactions"
	"github.com/cmorg789/vox/pkg/ratelimit"
)

// Default sweep cadences. In-memory state is swept often; database
// expiry and log pruning run on a slower cycle.
const (
	DefaultSweepInterval = time.Minute
	DefaultPruneInterval = time.Hour

	// limiterMaxIdle is how long a rate limiter bucket may sit unused
	// before the sweep reclaims it.
	limiterMaxIdle = 10 * time.Minute
)

// Store is the subset of the data layer the janitor touches.
type Store interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
	DeleteExpiredChallenges(ctx context.Context) (int64, error)
	DeleteExpiredNonces(ctx context.Context) (int64, error)
}

// Config controls the janitor cadences.
type Config struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	PruneInterval time.Duration `mapstructure:"prune_interval" yaml:"prune_interval"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = DefaultPruneInterval
	}
}

// Deps carries the components the janitor sweeps. Nil fields are
// skipped, so a test or a reduced deployment wires only what it runs.
type Deps struct {
	Store        Store
	Hub          *gateway.Hub
	EventLog     eventlog.Log
	Limiter      *ratelimit.Limiter
	Middleware   *ratelimit.Middleware
	Interactions *interactions.Store
}

// Janitor owns the background sweep goroutine.
type Janitor struct {
	deps    Deps
	config  Config
	stopCh  chan struct{}
	stopped chan struct{}
}

// New creates a janitor. Start must be called to begin sweeping.
func New(deps Deps, config Config) *Janitor {
	config.ApplyDefaults()
	return &Janitor{
		deps:    deps,
		config:  config,
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins the background sweep goroutine. It runs until Stop is
// called or the context is cancelled. Failures are logged, never
// fatal; the next tick retries.
func (j *Janitor) Start(ctx context.Context) {
	go func() {
		defer close(j.stopped)

		sweep := time.NewTicker(j.config.SweepInterval)
		defer sweep.Stop()
		prune := time.NewTicker(j.config.PruneInterval)
		defer prune.Stop()

		logger.Info("Cleanup janitor started",
			"sweep_interval", j.config.SweepInterval,
			"prune_interval", j.config.PruneInterval)

		for {
			select {
			case <-ctx.Done():
				logger.Debug("Cleanup janitor stopping (context cancelled)")
				return
			case <-j.stopCh:
				logger.Debug("Cleanup janitor stopping (stop signal)")
				return
			case <-sweep.C:
				j.Sweep()
			case <-prune.C:
				if err := j.Prune(ctx); err != nil {
					logger.Warn("Cleanup prune cycle had failures", logger.Err(err))
				}
			}
		}
	}()
}

// Stop signals the sweep goroutine to stop and waits for it to exit.
func (j *Janitor) Stop() {
	select {
	case <-j.stopCh:
		// Already stopped
		return
	default:
		close(j.stopCh)
	}
	<-j.stopped
	logger.Debug("Cleanup janitor stopped")
}

// Sweep reclaims expired in-memory state: resumable gateway sessions,
// orphaned presence, stale auth failure counters, idle rate limiter
// buckets, cached principals, and pending interactions.
func (j *Janitor) Sweep() {
	if j.deps.Hub != nil {
		if n := j.deps.Hub.CleanupSessions(); n > 0 {
			logger.Debug("Swept expired gateway sessions", "count", n)
		}
		if n := j.deps.Hub.CleanupOrphanedPresence(); n > 0 {
			logger.Debug("Swept orphaned presence entries", "count", n)
		}
		if n := j.deps.Hub.CleanupAuthFailures(); n > 0 {
			logger.Debug("Swept stale auth failure counters", "count", n)
		}
	}
	if j.deps.Limiter != nil {
		if n := j.deps.Limiter.Sweep(limiterMaxIdle); n > 0 {
			logger.Debug("Swept idle rate limit buckets", "count", n)
		}
	}
	if j.deps.Middleware != nil {
		if n := j.deps.Middleware.SweepCache(); n > 0 {
			logger.Debug("Swept expired principal cache entries", "count", n)
		}
	}
	if j.deps.Interactions != nil {
		if n := j.deps.Interactions.Sweep(); n > 0 {
			logger.Debug("Swept expired interactions", "count", n)
		}
	}
}

// Prune runs the slow-cycle work: database expiry and event log
// retention. Each task runs even when an earlier one fails; the
// aggregate error reports everything that went wrong.
func (j *Janitor) Prune(ctx context.Context) error {
	var result *multierror.Error

	if j.deps.Store != nil {
		if n, err := j.deps.Store.DeleteExpiredSessions(ctx); err != nil {
			result = multierror.Append(result, err)
		} else if n > 0 {
			logger.Debug("Pruned expired sessions", "count", n)
		}
		if n, err := j.deps.Store.DeleteExpiredChallenges(ctx); err != nil {
			result = multierror.Append(result, err)
		} else if n > 0 {
			logger.Debug("Pruned expired auth challenges", "count", n)
		}
		if n, err := j.deps.Store.DeleteExpiredNonces(ctx); err != nil {
			result = multierror.Append(result, err)
		} else if n > 0 {
			logger.Debug("Pruned expired federation nonces", "count", n)
		}
	}

	if j.deps.EventLog != nil {
		if n, err := j.deps.EventLog.Prune(ctx); err != nil {
			result = multierror.Append(result, err)
		} else if n > 0 {
			logger.Debug("Pruned event log entries", "count", n)
		}
	}

	return result.ErrorOrNil()
}
