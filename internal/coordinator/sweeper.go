package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper calls ProcessPending on a fixed interval.
type Sweeper struct {
	coord    *Coordinator
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. A non-positive interval disables Start.
func NewSweeper(coord *Coordinator, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{coord: coord, interval: interval, logger: logger}
}

// Start begins the sweep loop in a background goroutine.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval <= 0 || s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the loop and waits for an in-flight sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweeper stopped")
}

// FireNow runs a sweep immediately, outside the interval.
func (s *Sweeper) FireNow(ctx context.Context) (Report, error) {
	return s.coord.ProcessPending(ctx)
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.coord.ProcessPending(ctx)
			if err != nil {
				s.logger.Warn("sweep failed", zap.Error(err))
				continue
			}
			if len(report.Outcomes) > 0 {
				s.logger.Debug("sweep fired", zap.String("summary", report.Summary()))
			}
		}
	}
}
