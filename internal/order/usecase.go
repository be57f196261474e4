package order

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/classify"
	"main/internal/gateway"
	"main/internal/journal"
	"main/internal/risk"
	"main/internal/venue"
	"main/pkg/exception"
)

// Config tunes one venue's order manager.
type Config struct {
	RiskCaps       risk.Caps
	SlippageFactor float64
	FeeBufferPct   float64
	// EnrichedDiscretionary marks ambiguous reduce-only orders as real
	// trader exits during classification.
	EnrichedDiscretionary bool
}

// Usecase owns the TP/SL target map for one venue and the trading workflow
// built on top of it. One instance per venue, bound to that venue's gateway.
type Usecase struct {
	gw      *gateway.Gateway
	journal *journal.Journal
	cfg     Config

	mu          sync.Mutex
	targets     map[string]adapter.TargetPair
	hints       map[string]targetHint
	dailyAnchor struct {
		day    string
		equity float64
	}
}

func New(gw *gateway.Gateway, j *journal.Journal, cfg Config) *Usecase {
	return &Usecase{
		gw:      gw,
		journal: j,
		cfg:     cfg,
		targets: make(map[string]adapter.TargetPair),
		hints:   make(map[string]targetHint),
	}
}

func (u *Usecase) Venue() enum.Venue {
	return u.gw.Venue()
}

// Run consumes raw order batches from the gateway until ctx is done. Meant
// to run as one goroutine per venue; all map mutation funnels through it
// and the exported calls' own locking.
func (u *Usecase) Run(ctx context.Context) {
	id, queue := u.gw.RegisterSubscriber()
	defer u.gw.UnregisterSubscriber(id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-queue.Done():
			return
		case e := <-queue.C():
			if e.Type != enum.EventOrdersRaw {
				continue
			}
			batch, ok := e.Payload.([]venue.RawOrder)
			if !ok {
				continue
			}
			u.ApplyOrderBatch(batch, false)
		}
	}
}

// Refresh pulls a fresh REST order snapshot and rebuilds the target map
// with snapshot semantics. Used when the venue becomes active.
func (u *Usecase) Refresh(ctx context.Context) error {
	batch, err := u.gw.OpenOrders(ctx, true, false)
	if err != nil {
		return errors.Wrap(err, "refresh order state")
	}
	u.ApplyOrderBatch(batch, true)
	return nil
}

// ClassifiedOrder pairs an open order with its intent audit.
type ClassifiedOrder struct {
	Order  adapter.Order
	Intent classify.Result
}

// Orders returns the open orders with intent classification attached.
func (u *Usecase) Orders(ctx context.Context, forceRest bool) ([]ClassifiedOrder, error) {
	raws, err := u.gw.OpenOrders(ctx, forceRest, false)
	if err != nil {
		return nil, err
	}
	out := make([]ClassifiedOrder, 0, len(raws))
	for _, raw := range raws {
		out = append(out, ClassifiedOrder{
			Order:  raw.Order,
			Intent: classify.Order(raw.Order, classify.Hint{EnrichedDiscretionary: u.cfg.EnrichedDiscretionary}),
		})
	}
	return out, nil
}

// Positions returns normalized positions with protective levels backfilled
// from the target map and the hint cache, and pnl recomputed from a mark
// price when the venue omitted it.
func (u *Usecase) Positions(ctx context.Context, forceRest bool) ([]adapter.Position, error) {
	positions, err := u.gw.OpenPositions(ctx, forceRest, false)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]adapter.Position, 0, len(positions))
	for _, p := range positions {
		u.mu.Lock()
		if pair, ok := u.targets[p.Symbol]; ok {
			backfill(&p, pair)
		}
		if pair, ok := u.hintLocked(p.Symbol, now); ok {
			backfill(&p, pair)
		}
		u.mu.Unlock()

		if p.UnrealizedPnl == nil {
			if mark, err := u.gw.MarkPrice(ctx, p.Symbol); err == nil {
				pnl := (mark - p.EntryPrice) * p.Size
				if p.Side == enum.PositionSideShort {
					pnl = -pnl
				}
				p.UnrealizedPnl = &pnl
			} else {
				logs.Warnf("pnl backfill for %s: %v", p.Symbol, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func backfill(p *adapter.Position, pair adapter.TargetPair) {
	if p.TakeProfit == nil && pair.TakeProfit != nil {
		v := *pair.TakeProfit
		p.TakeProfit = &v
	}
	if p.StopLoss == nil && pair.StopLoss != nil {
		v := *pair.StopLoss
		p.StopLoss = &v
	}
}

// UpdateTargets places protective orders for an existing position and seeds
// the hint cache so the change shows up before the venue confirms it.
func (u *Usecase) UpdateTargets(ctx context.Context, symbol string, pair adapter.TargetPair) error {
	if pair.IsEmpty() {
		return exception.ErrOrderInvalidRequest
	}

	position, err := u.findPosition(ctx, symbol)
	if err != nil {
		return err
	}

	side := enum.OrderSideBuy
	if position.Side == enum.PositionSideShort {
		side = enum.OrderSideSell
	}
	if err := u.gw.UpdateTargets(ctx, symbol, side, position.Size, pair); err != nil {
		return err
	}

	u.mu.Lock()
	merged := u.targets[symbol]
	if pair.TakeProfit != nil {
		merged.TakeProfit = pair.TakeProfit
	}
	if pair.StopLoss != nil {
		merged.StopLoss = pair.StopLoss
	}
	u.targets[symbol] = merged
	u.seedHintLocked(symbol, pair)
	u.mu.Unlock()
	return nil
}

// CancelTpsl cancels protective legs for the symbol; with no legs given,
// both are canceled.
func (u *Usecase) CancelTpsl(ctx context.Context, symbol string, legs ...enum.TargetLeg) error {
	for _, leg := range legs {
		if !leg.IsAvailable() {
			return errors.Wrap(exception.ErrOrderUnknownLeg, leg.String())
		}
	}
	if err := u.gw.CancelTpslOrders(ctx, symbol, legs...); err != nil {
		return err
	}

	if len(legs) == 0 {
		legs = []enum.TargetLeg{enum.TargetLegTakeProfit, enum.TargetLegStopLoss}
	}
	u.mu.Lock()
	for _, leg := range legs {
		u.removeLegLocked(symbol, leg)
	}
	u.mu.Unlock()
	return nil
}

// ClearRuntimeState drops the target and hint maps on venue deactivation.
func (u *Usecase) ClearRuntimeState() {
	u.mu.Lock()
	u.targets = make(map[string]adapter.TargetPair)
	u.hints = make(map[string]targetHint)
	u.mu.Unlock()
}

func (u *Usecase) findPosition(ctx context.Context, symbol string) (adapter.Position, error) {
	positions, err := u.gw.OpenPositions(ctx, false, false)
	if err != nil {
		return adapter.Position{}, err
	}
	for _, p := range positions {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return adapter.Position{}, errors.Wrap(exception.ErrOrderNoPosition, symbol)
}
