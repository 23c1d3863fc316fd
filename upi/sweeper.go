package upi

import (
	"context"
	"sync"
	"time"

	"github.com/Govind-619/PayRoute/events"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/utils"
)

const sweepBatchSize = 100

// Sweeper expires UPI transactions that stayed PENDING longer than ttl.
type Sweeper struct {
	repo     *repository.UpiRepository
	bus      events.Bus
	clock    Clock
	interval time.Duration
	ttl      time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(repo *repository.UpiRepository, bus events.Bus, clock Clock, interval, ttl time.Duration) *Sweeper {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 {
		interval = utils.DefaultUPISweepInterval
	}
	if ttl <= 0 {
		ttl = utils.DefaultUPIPendingTTL
	}
	return &Sweeper{repo: repo, bus: bus, clock: clock, interval: interval, ttl: ttl}
}

// RunOnce performs one sweep pass and returns how many rows it expired.
// Each expired row yields exactly one upi.transaction.expired event.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.ttl)
	expired := 0

	for {
		stale, err := s.repo.ListStalePending(ctx, cutoff, sweepBatchSize)
		if err != nil {
			utils.LogError("UPI sweep query failed: %v", err)
			return expired, err
		}
		if len(stale) == 0 {
			break
		}

		progressed := false
		for i := range stale {
			txn := &stale[i]
			ok, err := s.repo.CompareAndSetStatus(ctx, txn.ID, models.UpiPending, models.UpiExpired, map[string]interface{}{
				"expired_at": now,
			})
			if err != nil {
				utils.LogError("Failed to expire UPI transaction %d: %v", txn.ID, err)
				continue
			}
			if !ok {
				continue
			}
			progressed = true
			expired++
			txn.Status = models.UpiExpired
			txn.ExpiredAt = &now
			s.bus.Publish(ctx, events.UpiTransactionExpired, expiredPayload(txn))
		}

		if len(stale) < sweepBatchSize || !progressed {
			break
		}
	}

	if expired > 0 {
		utils.LogInfo("UPI sweep expired %d transaction(s) pending since before %s", expired, cutoff.Format(time.RFC3339))
	}
	return expired, nil
}

// Start runs RunOnce every interval until Stop or ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		utils.LogInfo("UPI sweeper started (interval=%s ttl=%s)", s.interval, s.ttl)
		for {
			select {
			case <-ctx.Done():
				utils.LogInfo("UPI sweeper stopped")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					utils.LogError("UPI sweep pass failed: %v", err)
				}
			}
		}
	}(s.done)
}

// Stop halts the loop and waits for an in-flight pass to finish.
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
}

func expiredPayload(txn *models.UpiTransaction) map[string]interface{} {
	payload := map[string]interface{}{
		"upi_transaction_id":      txn.ID,
		"provider":                string(txn.Provider),
		"merchant_transaction_id": txn.MerchantTransactionID,
		"amount":                  txn.Amount.String(),
		"created_at":              txn.CreatedAt,
	}
	if txn.PaymentTransactionID != nil {
		payload["payment_transaction_id"] = *txn.PaymentTransactionID
	}
	return payload
}
