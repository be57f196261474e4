package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/obs"
	"main/internal/venue"
	"main/pkg/exception"
)

type fakeDriver struct {
	venueID enum.Venue

	configs   map[string]adapter.SymbolConfig
	orders    []venue.RawOrder
	positions []adapter.Position
	account   adapter.AccountSummary
	mark      float64

	ordersErr    error
	positionsErr error
	accountErr   error

	orderCalls    int
	positionCalls int
	accountCalls  int

	placed   []venue.OrderRequest
	canceled []string
}

func (d *fakeDriver) Venue() enum.Venue { return d.venueID }

func (d *fakeDriver) FetchSymbolConfigs(context.Context) (map[string]adapter.SymbolConfig, error) {
	return d.configs, nil
}

func (d *fakeDriver) FetchOpenOrders(context.Context) ([]venue.RawOrder, error) {
	d.orderCalls++
	if d.ordersErr != nil {
		return nil, d.ordersErr
	}
	return d.orders, nil
}

func (d *fakeDriver) FetchOpenPositions(context.Context) ([]adapter.Position, error) {
	d.positionCalls++
	if d.positionsErr != nil {
		return nil, d.positionsErr
	}
	return d.positions, nil
}

func (d *fakeDriver) FetchAccountSummary(context.Context) (adapter.AccountSummary, error) {
	d.accountCalls++
	if d.accountErr != nil {
		return adapter.AccountSummary{}, d.accountErr
	}
	return d.account, nil
}

func (d *fakeDriver) FetchMarkPrice(context.Context, string) (float64, error) {
	return d.mark, nil
}

func (d *fakeDriver) PlaceOrder(_ context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	d.placed = append(d.placed, req)
	return venue.OrderResult{OrderID: "srv-1", Status: enum.OrderStatusOpen}, nil
}

func (d *fakeDriver) CancelOrder(_ context.Context, _, orderID string) error {
	d.canceled = append(d.canceled, orderID)
	return nil
}

func (d *fakeDriver) Subscribe(context.Context, string, func(venue.StreamEvent)) (func(), error) {
	return func() {}, nil
}

func testConfig() Config {
	return Config{
		ReconcileInterval: time.Hour,
		ReconcileMinGap:   time.Hour,
		StalenessWindow:   50 * time.Millisecond,
		StreamMinAge:      10 * time.Millisecond,
		OrderTimeout:      time.Hour,
		EmptyResultGrace:  time.Hour,
		RetryAttempts:     1,
		Streaming:         true,
	}
}

func rawOrder(orderID, symbol string) venue.RawOrder {
	return venue.RawOrder{
		Order: adapter.Order{
			Venue:   enum.VenueHyper,
			Symbol:  symbol,
			OrderID: orderID,
			Side:    enum.OrderSideBuy,
			Status:  enum.OrderStatusOpen,
			Kind:    enum.OrderKindLimit,
			Size:    1,
		},
		Fields: map[string]any{},
	}
}

func newTestGateway(d *fakeDriver, cfg Config) *Gateway {
	return New(d, cfg, obs.NewCounters())
}

func TestLoadConfigs(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper}
	g := newTestGateway(d, testConfig())

	err := g.LoadConfigs(context.Background())
	require.ErrorIs(t, err, exception.ErrGatewayNoInstruments)

	d.configs = map[string]adapter.SymbolConfig{
		"BTC": {Symbol: "BTC", TickSize: 0.1, StepSize: 0.001},
	}
	require.NoError(t, g.LoadConfigs(context.Background()))

	cfg, err := g.SymbolConfig("BTC")
	require.NoError(t, err)
	require.Equal(t, 0.1, cfg.TickSize)

	_, err = g.SymbolConfig("DOGE")
	require.ErrorIs(t, err, exception.ErrGatewayUnknownSymbol)
}

func TestOpenOrdersCacheAndForce(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper, orders: []venue.RawOrder{rawOrder("a", "BTC")}}
	g := newTestGateway(d, testConfig())
	ctx := context.Background()

	out, err := g.OpenOrders(ctx, true, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 1, d.orderCalls)

	// cache hit, no extra REST call
	out, err = g.OpenOrders(ctx, false, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 1, d.orderCalls)

	out, err = g.OpenOrders(ctx, true, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 2, d.orderCalls)
}

func TestOpenOrdersFallbackToCache(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper, orders: []venue.RawOrder{rawOrder("a", "BTC")}}
	g := newTestGateway(d, testConfig())
	ctx := context.Background()

	_, err := g.OpenOrders(ctx, true, false)
	require.NoError(t, err)

	d.ordersErr = context.DeadlineExceeded
	out, err := g.OpenOrders(ctx, true, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 1, g.Health().RestFallbacks["orders"])
}

func TestOpenOrdersFirstLoadFailureSurfaces(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper, ordersErr: context.DeadlineExceeded}
	g := newTestGateway(d, testConfig())

	_, err := g.OpenOrders(context.Background(), true, false)
	require.ErrorIs(t, err, exception.ErrTransient)
}

func TestEmptyOrdersPageWithinGraceKeepsCache(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper, orders: []venue.RawOrder{rawOrder("a", "BTC")}}
	g := newTestGateway(d, testConfig())
	ctx := context.Background()

	out, err := g.OpenOrders(ctx, true, false)
	require.NoError(t, err)
	require.Len(t, out, 1)

	d.orders = nil
	out, err = g.OpenOrders(ctx, true, false)
	require.NoError(t, err)
	require.Len(t, out, 1, "empty page inside grace must not wipe the cache")

	// past the grace window the empty page is accepted
	g.mu.Lock()
	g.lastNonEmptyOrders = time.Now().Add(-2 * time.Hour)
	g.mu.Unlock()
	out, err = g.OpenOrders(ctx, true, false)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestReconcileMinGapSuppression(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper}
	g := newTestGateway(d, testConfig())
	ctx := context.Background()

	require.True(t, g.RequestReconcile(ctx, enum.ReconcilePeriodicAudit))
	require.False(t, g.RequestReconcile(ctx, enum.ReconcileWsStale))
	require.False(t, g.RequestReconcile(ctx, enum.ReconcileOrderLifecycleTimeout))

	h := g.Health()
	require.Equal(t, 1, h.ReconcileCount)
	require.Equal(t, "periodic_audit", h.LastReconcileReason)
	require.Equal(t, 1, h.ReconcileReasonCounts["periodic_audit"])
	require.Zero(t, h.ReconcileReasonCounts["ws_stale"])
}

func TestReconcileCountsEveryTriggeredReason(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper}
	cfg := testConfig()
	cfg.OrderTimeout = time.Millisecond
	g := newTestGateway(d, cfg)
	ctx := context.Background()

	g.mu.Lock()
	g.recon.pendingSubmitted["stuck"] = time.Now().Add(-time.Second)
	g.mu.Unlock()

	reasons := g.evaluateReasons(time.Now())
	require.Contains(t, reasons, enum.ReconcilePeriodicAudit)
	require.Contains(t, reasons, enum.ReconcileOrderLifecycleTimeout)

	// one reconcile runs, yet every co-firing trigger lands in the histogram
	require.True(t, g.RequestReconcile(ctx, reasons...))

	h := g.Health()
	require.Equal(t, 1, h.ReconcileCount)
	require.Equal(t, "periodic_audit", h.LastReconcileReason)
	require.Equal(t, 1, h.ReconcileReasonCounts["periodic_audit"])
	require.Equal(t, 1, h.ReconcileReasonCounts["order_lifecycle_timeout"])
}

func TestStopStreamsLeavesHandoffOpen(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper}
	g := newTestGateway(d, testConfig())

	require.NoError(t, g.StartStreams(context.Background()))
	g.StopStreams()

	// a driver callback that raced the stop must not hit a closed channel
	g.events <- venue.StreamEvent{Channel: venue.ChannelOrders}
}

func TestOrdersCarryObservedAt(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper, orders: []venue.RawOrder{rawOrder("a", "BTC")}}
	g := newTestGateway(d, testConfig())

	out, err := g.OpenOrders(context.Background(), true, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.False(t, out[0].Order.ObservedAt.IsZero())

	g.mergeStreamOrders([]venue.RawOrder{rawOrder("b", "BTC")})
	g.mu.Lock()
	require.False(t, g.orders["b"].Order.ObservedAt.IsZero())
	g.mu.Unlock()
}

func TestWsStaleConditions(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper}
	g := newTestGateway(d, testConfig())
	now := time.Now()

	// stream never started
	require.False(t, g.wsStale(now))

	// warming up
	g.mu.Lock()
	g.recon.streamStartedAt = now.Add(-time.Millisecond)
	g.mu.Unlock()
	require.False(t, g.wsStale(now))

	// old stream but no private event ever seen
	g.mu.Lock()
	g.recon.streamStartedAt = now.Add(-time.Minute)
	g.mu.Unlock()
	require.False(t, g.wsStale(now))

	// silent but nothing at stake
	g.mu.Lock()
	g.recon.lastPrivateEventAt = now.Add(-time.Minute)
	g.mu.Unlock()
	require.False(t, g.wsStale(now))

	// silent with an unresolved submission
	g.mu.Lock()
	g.recon.pendingSubmitted["x"] = now
	g.mu.Unlock()
	require.True(t, g.wsStale(now))

	// recent event clears it
	g.mu.Lock()
	g.recon.lastPrivateEventAt = now
	g.mu.Unlock()
	require.False(t, g.wsStale(now))
}

func TestWsStaleWithStreamExposure(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper}
	g := newTestGateway(d, testConfig())
	now := time.Now()

	g.mu.Lock()
	g.recon.streamStartedAt = now.Add(-time.Minute)
	g.recon.lastPrivateEventAt = now.Add(-time.Minute)
	g.positions = []adapter.Position{{Symbol: "BTC", Side: enum.PositionSideLong, Size: 1}}
	g.positionsFromStream = true
	g.mu.Unlock()

	require.True(t, g.wsStale(now))
}

func TestMergeStreamOrdersDeltas(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper}
	g := newTestGateway(d, testConfig())

	g.mergeStreamOrders([]venue.RawOrder{rawOrder("a", "BTC"), rawOrder("b", "BTC")})
	g.mu.Lock()
	require.Len(t, g.orders, 2)
	g.mu.Unlock()

	// terminal update removes only its own order
	canceled := rawOrder("a", "BTC")
	canceled.Order.Status = enum.OrderStatusCanceled
	g.mergeStreamOrders([]venue.RawOrder{canceled})
	g.mu.Lock()
	require.Len(t, g.orders, 1)
	_, stillThere := g.orders["b"]
	require.True(t, stillThere)
	g.mu.Unlock()
}

func TestStreamEventResolvesPending(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper, configs: map[string]adapter.SymbolConfig{"BTC": {Symbol: "BTC"}}}
	g := newTestGateway(d, testConfig())
	ctx := context.Background()
	require.NoError(t, g.LoadConfigs(ctx))

	_, err := g.PlaceOrder(ctx, venue.OrderRequest{Symbol: "BTC", Side: enum.OrderSideBuy, Kind: enum.OrderKindLimit, Size: 1})
	require.NoError(t, err)
	require.Equal(t, 1, g.Health().PendingSubmitted)

	g.mergeStreamOrders([]venue.RawOrder{rawOrder("srv-1", "BTC")})
	require.Zero(t, g.Health().PendingSubmitted)
}

func TestCancelTpslOrders(t *testing.T) {
	d := &fakeDriver{venueID: enum.VenueHyper}
	g := newTestGateway(d, testConfig())

	tp := rawOrder("tp-1", "BTC")
	tp.Order.Kind = enum.OrderKindTakeProfitMarket
	tp.Order.TpslFlag = enum.TristateTrue
	tp.Order.TriggerPrice = 110
	sl := rawOrder("sl-1", "BTC")
	sl.Order.Kind = enum.OrderKindStopMarket
	sl.Order.TpslFlag = enum.TristateTrue
	sl.Order.TriggerPrice = 90
	plain := rawOrder("plain-1", "BTC")

	g.mu.Lock()
	for _, raw := range []venue.RawOrder{tp, sl, plain} {
		g.orders[raw.Order.IdentityKey()] = raw
	}
	g.havePolledOrders = true
	g.mu.Unlock()

	require.NoError(t, g.CancelTpslOrders(context.Background(), "BTC", enum.TargetLegStopLoss))
	require.Equal(t, []string{"sl-1"}, d.canceled)

	d.canceled = nil
	require.NoError(t, g.CancelTpslOrders(context.Background(), "BTC"))
	require.ElementsMatch(t, []string{"tp-1"}, d.canceled)
}

func TestClearRuntimeStateKeepsConfigs(t *testing.T) {
	d := &fakeDriver{
		venueID: enum.VenueHyper,
		configs: map[string]adapter.SymbolConfig{"BTC": {Symbol: "BTC"}},
		orders:  []venue.RawOrder{rawOrder("a", "BTC")},
	}
	g := newTestGateway(d, testConfig())
	ctx := context.Background()
	require.NoError(t, g.LoadConfigs(ctx))
	_, err := g.OpenOrders(ctx, true, false)
	require.NoError(t, err)

	g.ClearRuntimeState()

	g.mu.Lock()
	require.Empty(t, g.orders)
	require.False(t, g.havePolledOrders)
	g.mu.Unlock()

	_, err = g.SymbolConfig("BTC")
	require.NoError(t, err)
}

func TestAccountSummaryEmbedsHealth(t *testing.T) {
	d := &fakeDriver{
		venueID: enum.VenueHyper,
		account: adapter.AccountSummary{Equity: 5000, Withdrawable: 4000},
	}
	g := newTestGateway(d, testConfig())
	ctx := context.Background()

	require.True(t, g.RequestReconcile(ctx, enum.ReconcilePeriodicAudit))

	summary, err := g.AccountSummary(ctx, true)
	require.NoError(t, err)
	require.Equal(t, enum.VenueHyper, summary.Venue)
	require.Equal(t, "rest", summary.UpnlSource)
	require.Equal(t, 1, summary.Health.ReconcileCount)
}
