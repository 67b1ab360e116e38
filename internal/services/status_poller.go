package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/events"
	"github.com/adcp/salesagent/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// pollStatuses are the local statuses whose remote state can still change.
var pollStatuses = []string{
	models.MediaBuyStatusDraft,
	models.MediaBuyStatusPending,
	models.MediaBuyStatusActive,
	models.MediaBuyStatusPaused,
}

// StatusPoller asks each buy's ad server for its current status and moves
// the local row along the media buy transition table.
type StatusPoller struct {
	resolver    *AdapterResolver
	buys        mediaBuyStore
	publisher   events.Publisher
	concurrency int
	batch       int
	log         *zap.Logger
	now         func() time.Time
}

func NewStatusPoller(resolver *AdapterResolver, buys mediaBuyStore, publisher events.Publisher, concurrency int, log *zap.Logger) *StatusPoller {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &StatusPoller{
		resolver:    resolver,
		buys:        buys,
		publisher:   publisher,
		concurrency: concurrency,
		batch:       500,
		log:         log,
		now:         time.Now,
	}
}

// Poll checks one batch of open buys and returns how many changed status.
// Failures on individual buys are logged and skipped.
func (p *StatusPoller) Poll(ctx context.Context) (int, error) {
	buys, err := p.buys.ListByStatuses(ctx, pollStatuses, p.batch)
	if err != nil {
		return 0, err
	}
	if len(buys) == 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		resolved = make(map[string]adapters.Adapter)
		changed  atomic.Int64
	)
	adapterFor := func(ctx context.Context, tenantID, principalID string) (adapters.Adapter, error) {
		key := tenantID + "/" + principalID
		mu.Lock()
		a, ok := resolved[key]
		mu.Unlock()
		if ok {
			return a, nil
		}
		r, err := p.resolver.Resolve(ctx, tenantID, principalID)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		resolved[key] = r.Adapter
		mu.Unlock()
		return r.Adapter, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, buy := range buys {
		g.Go(func() error {
			log := p.log.With(zap.String("tenant_id", buy.TenantID), zap.String("media_buy_id", buy.MediaBuyID))
			adapter, err := adapterFor(gctx, buy.TenantID, buy.PrincipalID)
			if err != nil {
				log.Warn("status poll: resolve adapter", zap.Error(err))
				return nil
			}
			ok, err := p.sync(gctx, adapter, buy)
			if err != nil {
				log.Warn("status poll failed", zap.String("adapter", adapter.Name()), zap.Error(err))
				return nil
			}
			if ok {
				changed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(changed.Load()), err
	}
	return int(changed.Load()), nil
}

func (p *StatusPoller) sync(ctx context.Context, adapter adapters.Adapter, buy models.MediaBuy) (bool, error) {
	now := p.now()
	st, err := adapter.CheckMediaBuyStatus(ctx, buy.MediaBuyID, now)
	if err != nil {
		return false, err
	}
	if err := p.buys.Touch(ctx, buy.TenantID, buy.MediaBuyID, now); err != nil {
		return false, err
	}
	if st.Status == buy.Status || !models.IsValidMediaBuyTransition(buy.Status, st.Status) {
		return false, nil
	}
	if err := p.buys.UpdateStatus(ctx, buy.TenantID, buy.MediaBuyID, st.Status); err != nil {
		return false, err
	}

	p.log.Info("media buy status changed",
		zap.String("media_buy_id", buy.MediaBuyID),
		zap.String("from", buy.Status),
		zap.String("to", st.Status),
	)
	if err := p.publisher.Publish(ctx, events.StreamMediaBuy, events.Event{
		Type: events.EventMediaBuyUpdated,
		Payload: map[string]any{
			"tenant_id":    buy.TenantID,
			"media_buy_id": buy.MediaBuyID,
			"old_status":   buy.Status,
			"status":       st.Status,
		},
	}); err != nil {
		p.log.Warn("publish status change failed", zap.String("media_buy_id", buy.MediaBuyID), zap.Error(err))
	}
	return true, nil
}
