package service

import (
	"context"
	"sync"
	"time"

	"marketplace-backend/internal/model"
	"marketplace-backend/internal/repository"

	"go.uber.org/zap"
)

// DefaultSweepDelay is how long a freshly ordered listing may stay
// pending_payment before the sweep expires it.
const DefaultSweepDelay = 60 * time.Second

// Sweeper runs one cancellable deferred check per listing: if the listing is
// still pending_payment when the timer fires, it is marked expired and
// removed. A listing that completed payment in the meantime cancels its sweep;
// the sweep also re-reads current status right before acting, so a capture
// that raced the timer is left untouched.
type Sweeper struct {
	log         *zap.Logger
	listingRepo repository.ListingRepository
	delay       time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewSweeper(log *zap.Logger, listingRepo repository.ListingRepository, delay time.Duration) *Sweeper {
	return &Sweeper{
		log:         log,
		listingRepo: listingRepo,
		delay:       delay,
		timers:      make(map[string]*time.Timer),
	}
}

// Schedule arms the sweep for a listing. Rescheduling replaces any earlier
// timer for the same listing.
func (s *Sweeper) Schedule(listingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[listingID]; ok {
		timer.Stop()
	}

	s.timers[listingID] = time.AfterFunc(s.delay, func() {
		s.sweep(listingID)
	})
}

// Cancel disarms the sweep for a listing that already resolved.
func (s *Sweeper) Cancel(listingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[listingID]; ok {
		timer.Stop()
		delete(s.timers, listingID)
	}
}

// Stop disarms every pending sweep. Used at shutdown.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Sweeper) sweep(listingID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.mu.Lock()
	delete(s.timers, listingID)
	s.mu.Unlock()

	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		s.log.Warn("sweep: read listing", zap.String("listing_id", listingID), zap.Error(err))
		return
	}
	if listing.Status != model.StatusPendingPayment {
		return
	}

	applied, err := s.listingRepo.UpdateStatusIf(ctx, listingID,
		[]string{model.StatusPendingPayment}, model.StatusExpired)
	if err != nil {
		s.log.Error("sweep: expire listing", zap.String("listing_id", listingID), zap.Error(err))
		return
	}
	if !applied {
		// A capture won the race after our read.
		return
	}

	if err := s.listingRepo.Delete(ctx, listingID); err != nil {
		s.log.Error("sweep: delete listing", zap.String("listing_id", listingID), zap.Error(err))
		return
	}

	s.log.Info("swept unpaid listing", zap.String("listing_id", listingID))
}
