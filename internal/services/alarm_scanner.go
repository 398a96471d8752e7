package services

import (
	"context"
	"sync"
	"time"

	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/metrics"
	"github.com/automax/routing/internal/repository"
)

// AlarmScanner periodically flags open record cards whose answer limit date
// has passed.
type AlarmScanner interface {
	Start(ctx context.Context)
	Stop()
	Scan(ctx context.Context) (int64, error)
}

type alarmScanner struct {
	cards    repository.RecordCardRepository
	interval time.Duration
	log      *logger.Logger
	metrics  *metrics.RoutingMetrics
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func NewAlarmScanner(cards repository.RecordCardRepository, interval time.Duration, log *logger.Logger, m *metrics.RoutingMetrics) AlarmScanner {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &alarmScanner{
		cards:    cards,
		interval: interval,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

func (s *alarmScanner) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.log.Info("Alarm scanner started", "interval", s.interval)

	go s.loop(ctx, s.stopChan, s.done)
}

func (s *alarmScanner) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if _, err := s.Scan(ctx); err != nil {
		s.log.Error("Initial alarm scan failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil {
				s.log.Error("Alarm scan failed", "error", err)
			}
		case <-stop:
			s.log.Info("Alarm scanner stopped")
			return
		case <-ctx.Done():
			s.log.Info("Alarm scanner context cancelled")
			return
		}
	}
}

// Stop halts the scanner and waits for the running scan to finish.
func (s *alarmScanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *alarmScanner) Scan(ctx context.Context) (int64, error) {
	marked, err := s.cards.MarkResponseTimeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		s.metrics.AlarmsMarked.Add(float64(marked))
		s.log.Info("Record cards marked with expired response time", "count", marked)
	}
	return marked, nil
}
