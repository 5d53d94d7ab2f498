package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// SchedulerConfig carries the timing knobs for the scan loop.
type SchedulerConfig struct {
	// ScanInterval is the pause between scan cycles.
	ScanInterval time.Duration
	// FeedTimeout bounds each call to the opportunity feed.
	FeedTimeout time.Duration
	// TradeTimeout bounds one two-leg execution. In-flight executions run
	// under this timeout even while the scheduler is shutting down.
	TradeTimeout time.Duration
	// MaxConcurrentUsers caps how many sessions are processed in parallel
	// within one cycle.
	MaxConcurrentUsers int
	// TradeCooldown is how long a just-traded discrepancy is suppressed
	// before the same user/strategy/symbol/venue combination may trade
	// again. The feed keeps reporting a spread until it closes.
	TradeCooldown time.Duration
}

func (c *SchedulerConfig) normalize() {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 5 * time.Second
	}
	if c.FeedTimeout <= 0 {
		c.FeedTimeout = 3 * time.Second
	}
	if c.TradeTimeout <= 0 {
		c.TradeTimeout = 30 * time.Second
	}
	if c.MaxConcurrentUsers <= 0 {
		c.MaxConcurrentUsers = 8
	}
	if c.TradeCooldown <= 0 {
		c.TradeCooldown = time.Minute
	}
}

// Stats is a snapshot of the scheduler's lifetime counters.
type Stats struct {
	Running         bool  `json:"running"`
	ActiveUsers     int   `json:"active_users"`
	Cycles          int64 `json:"cycles"`
	TradesExecuted  int64 `json:"trades_executed"`
	PartialTrades   int64 `json:"partial_trades"`
	SkippedAttempts int64 `json:"skipped_attempts"`
}

// Scheduler runs the periodic scan loop: every interval it snapshots the
// enrolled sessions, pulls opportunities for each, matches them against the
// session's strategies, and hands accepted matches to the executor. One
// user's failure never disturbs another's cycle or stops the loop.
type Scheduler struct {
	cfg      SchedulerConfig
	sessions *SessionRegistry
	feed     domain.OpportunityFeed
	executor *Executor
	dedup    *Dedup
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	cycles         atomic.Int64
	tradesExecuted atomic.Int64
	partialTrades  atomic.Int64
	skipped        atomic.Int64
}

// NewScheduler wires a stopped scheduler over the given session registry,
// opportunity feed, and executor.
func NewScheduler(cfg SchedulerConfig, sessions *SessionRegistry, feed domain.OpportunityFeed, executor *Executor, logger *slog.Logger) *Scheduler {
	cfg.normalize()
	return &Scheduler{
		cfg:      cfg,
		sessions: sessions,
		feed:     feed,
		executor: executor,
		dedup:    NewDedup(cfg.TradeCooldown),
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Start launches the scan loop. Calling Start while already running is a
// logged no-op. The loop stops when Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("scheduler already running, start ignored")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx)
	s.logger.Info("scheduler started", slog.Duration("scan_interval", s.cfg.ScanInterval))
}

// Stop cancels the loop and blocks until it has exited. In-flight executions
// finish under their own trade timeout before Stop returns. Stopping a
// stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// Running reports whether the scan loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// EnableUser installs or replaces the auto-trading session for userID. Safe
// to call while a cycle is in progress; the new session takes effect from the
// next cycle.
func (s *Scheduler) EnableUser(userID int64, strategies []domain.Strategy, creds map[string]domain.Credentials) {
	s.sessions.Add(NewSession(userID, strategies, creds))
	s.logger.Info("auto-trade enabled",
		slog.Int64("user_id", userID),
		slog.Int("strategies", len(strategies)),
	)
}

// DisableUser removes userID's session. A cycle already iterating its
// snapshot may still finish that user's in-flight trades.
func (s *Scheduler) DisableUser(userID int64) bool {
	removed := s.sessions.Remove(userID)
	if removed {
		s.logger.Info("auto-trade disabled", slog.Int64("user_id", userID))
	}
	return removed
}

// UserActive reports whether userID is currently enrolled.
func (s *Scheduler) UserActive(userID int64) bool {
	return s.sessions.Get(userID) != nil
}

// RecentTrades returns the bounded recent-trade history for userID, or nil
// when the user is not enrolled.
func (s *Scheduler) RecentTrades(userID int64) []domain.Trade {
	sess := s.sessions.Get(userID)
	if sess == nil {
		return nil
	}
	return sess.RecentTrades()
}

// Stats returns a snapshot of the scheduler's counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Running:         s.Running(),
		ActiveUsers:     s.sessions.Len(),
		Cycles:          s.cycles.Load(),
		TradesExecuted:  s.tradesExecuted.Load(),
		PartialTrades:   s.partialTrades.Load(),
		SkippedAttempts: s.skipped.Load(),
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	cleanup := time.NewTicker(s.cfg.TradeCooldown)
	defer cleanup.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			s.dedup.Cleanup()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle processes every enrolled session once. Sessions fan out across a
// bounded group; the group always waits, so the loop never leaves a cycle
// with work still running.
func (s *Scheduler) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.cycles.Add(1)

	sessions := s.sessions.Snapshot()
	if len(sessions) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConcurrentUsers)
	for _, sess := range sessions {
		g.Go(func() error {
			s.processSession(ctx, sess)
			return nil
		})
	}
	g.Wait()
}

// processSession runs one user's scan: fetch opportunities, match, execute.
// All errors are contained here; nothing propagates to the loop.
func (s *Scheduler) processSession(ctx context.Context, sess *Session) {
	log := s.logger.With(slog.Int64("user_id", sess.UserID))

	feedCtx, cancel := context.WithTimeout(ctx, s.cfg.FeedTimeout)
	opps, err := s.feed.Opportunities(feedCtx)
	cancel()
	if err != nil {
		log.Warn("opportunity feed unavailable", slog.String("error", err.Error()))
		return
	}
	if len(opps) == 0 {
		return
	}

	matches := MatchOpportunities(opps, sess.Strategies)
	if len(matches) == 0 {
		return
	}
	log.Debug("opportunities matched",
		slog.Int("scanned", len(opps)),
		slog.Int("matched", len(matches)),
	)

	for _, match := range matches {
		if ctx.Err() != nil {
			return
		}
		if s.dedup.IsDuplicate(tradeKey(sess.UserID, match)) {
			log.Debug("opportunity in cooldown, skipping", slog.String("symbol", match.Opportunity.Symbol))
			continue
		}
		s.executeMatch(ctx, log, sess, match)
	}
}

// executeMatch runs one two-leg execution. The trade context is detached
// from the loop context so a Stop during the buy leg cannot strand an
// unrecorded position; the trade timeout still bounds it.
func (s *Scheduler) executeMatch(ctx context.Context, log *slog.Logger, sess *Session, match Match) {
	tradeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TradeTimeout)
	defer cancel()

	trade, err := s.executor.Execute(tradeCtx, sess, match)
	switch {
	case err == nil:
		s.tradesExecuted.Add(1)
	case trade.Status == domain.TradeStatusPartial:
		s.tradesExecuted.Add(1)
		s.partialTrades.Add(1)
	default:
		s.skipped.Add(1)
		log.Warn("trade attempt abandoned",
			slog.String("symbol", match.Opportunity.Symbol),
			slog.String("error", err.Error()),
		)
	}
}
