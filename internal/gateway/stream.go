package gateway

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/bus"
	"main/internal/venue"
)

const handoffCapacity = 4096

// StartStreams subscribes the private channels and starts the consumer,
// monitor and account refresh loops. Idempotent.
func (g *Gateway) StartStreams(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return nil
	}

	streamCtx, cancel := context.WithCancel(context.Background())

	g.mu.Lock()
	g.recon.streamStartedAt = time.Now()
	g.recon.lastPrivateEventAt = time.Time{}
	g.mu.Unlock()

	g.cancelStream = cancel
	g.events = make(chan venue.StreamEvent, handoffCapacity)

	if g.cfg.Streaming {
		if err := g.subscribeAll(streamCtx); err != nil {
			g.teardownSubscriptions()
			cancel()
			g.running.Store(false)
			return err
		}
	}

	g.wg.Add(1)
	go g.consumeLoop(streamCtx)
	g.wg.Add(1)
	go g.monitorLoop(streamCtx)
	g.wg.Add(1)
	go g.accountLoop(streamCtx)

	logs.Infof("gateway streams started for %s (streaming=%v)", g.Venue(), g.cfg.Streaming)
	return nil
}

// StopStreams tears everything down and waits for the loops. Idempotent.
func (g *Gateway) StopStreams() {
	if !g.running.CompareAndSwap(true, false) {
		return
	}
	g.teardownSubscriptions()
	if g.cancelStream != nil {
		g.cancelStream()
	}
	g.wg.Wait()
	// the handoff channel is left open: a driver callback that raced the
	// running flip may still send into it, and StartStreams replaces it.
	logs.Infof("gateway streams stopped for %s", g.Venue())
}

func (g *Gateway) subscribeAll(ctx context.Context) error {
	channels := []string{venue.ChannelOrders, venue.ChannelPositions, venue.ChannelAccount}
	for _, channel := range channels {
		unsub, err := g.driver.Subscribe(ctx, channel, g.enqueue)
		if err != nil {
			g.teardownSubscriptions()
			return errors.Wrapf(err, "subscribe %s", channel)
		}
		g.unsubscribes = append(g.unsubscribes, unsub)
	}
	return nil
}

func (g *Gateway) teardownSubscriptions() {
	for _, unsub := range g.unsubscribes {
		unsub()
	}
	g.unsubscribes = nil
}

// enqueue runs on the driver's read goroutine. It only hands the event off;
// a full handoff queue drops the event rather than blocking the socket.
func (g *Gateway) enqueue(e venue.StreamEvent) {
	if !g.running.Load() {
		return
	}
	select {
	case g.events <- e:
	default:
		g.counters.IncHandoffDrop()
	}
}

func (g *Gateway) consumeLoop(ctx context.Context) {
	defer g.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-g.events:
			g.handleStreamEvent(e)
		}
	}
}

func (g *Gateway) monitorLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reasons := g.evaluateReasons(time.Now())
			if len(reasons) == 0 {
				continue
			}
			if !g.RequestReconcile(ctx, reasons...) {
				continue
			}
			if g.cfg.Streaming && containsReason(reasons, enum.ReconcileWsStale) {
				g.resubscribe(ctx)
			}
		}
	}
}

func containsReason(reasons []enum.ReconcileReason, want enum.ReconcileReason) bool {
	for _, reason := range reasons {
		if reason == want {
			return true
		}
	}
	return false
}

func (g *Gateway) accountLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.cfg.AccountRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := g.AccountSummary(ctx, true)
			if err != nil {
				logs.Errorf("account refresh: %v", err)
				continue
			}
			g.publishAccount(summary)
		}
	}
}

// resubscribe drops and re-attaches all private channels after staleness.
func (g *Gateway) resubscribe(ctx context.Context) {
	g.teardownSubscriptions()
	g.mu.Lock()
	g.recon.streamStartedAt = time.Now()
	g.recon.lastPrivateEventAt = time.Time{}
	g.mu.Unlock()
	if err := g.subscribeAll(ctx); err != nil {
		logs.Errorf("resubscribe after stale stream: %v", err)
	}
}

func (g *Gateway) handleStreamEvent(e venue.StreamEvent) {
	g.mu.Lock()
	g.recon.lastPrivateEventAt = time.Now()
	g.mu.Unlock()

	switch e.Channel {
	case venue.ChannelOrders:
		g.mergeStreamOrders(e.Orders)
	case venue.ChannelPositions:
		g.mu.Lock()
		g.positions = filterPositions(e.Positions)
		g.positionsFromStream = true
		if len(g.positions) > 0 {
			g.lastNonEmptyPositions = time.Now()
		}
		out, _ := g.cachedPositionsLocked()
		g.mu.Unlock()
		g.publishPositions(out)
	case venue.ChannelAccount:
		if e.Account == nil {
			return
		}
		summary := *e.Account
		summary.Venue = g.Venue()
		if summary.UpnlSource == "" {
			summary.UpnlSource = "ws"
		}
		g.mu.Lock()
		g.account = summary
		g.accountAt = time.Now()
		g.haveAccount = true
		g.mu.Unlock()
		g.publishAccount(summary)
	}
}

// mergeStreamOrders folds a push batch into the order cache. Push batches
// are deltas, not snapshots: terminal updates remove their order, open
// updates upsert, and absent orders are left alone. The raw batch is
// published as-is so TP/SL reconciliation sees terminal evidence too.
func (g *Gateway) mergeStreamOrders(batch []venue.RawOrder) {
	now := time.Now()
	g.mu.Lock()
	for i := range batch {
		batch[i].Order.ObservedAt = now
		raw := batch[i]
		key := raw.Order.IdentityKey()
		delete(g.recon.pendingSubmitted, key)
		if raw.Order.ClientOrderID != "" {
			delete(g.recon.pendingSubmitted, raw.Order.ClientOrderID)
		}
		if raw.Order.Status.IsTerminal() {
			delete(g.orders, key)
			continue
		}
		g.orders[key] = raw
	}
	g.ordersFromStream = true
	if len(g.orders) > 0 {
		g.lastNonEmptyOrders = time.Now()
	}
	out, _ := g.cachedOrdersLocked()
	g.mu.Unlock()

	g.hub.Publish(bus.Event{Type: enum.EventOrdersRaw, Venue: g.Venue(), Payload: batch})
	normalized := make([]adapter.Order, 0, len(out))
	for _, raw := range out {
		normalized = append(normalized, raw.Order)
	}
	g.hub.Publish(bus.Event{Type: enum.EventOrders, Venue: g.Venue(), Payload: normalized})
}
