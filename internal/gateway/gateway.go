package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/bus"
	"main/internal/obs"
	"main/internal/venue"
	"main/pkg/exception"
)

// Config carries the per-venue consistency knobs. Zero values fall back to
// the defaults below.
type Config struct {
	ReconcileInterval time.Duration // periodic_audit cadence
	ReconcileMinGap   time.Duration // storm guard between reconciles
	StalenessWindow   time.Duration // max silence on the private feed
	StreamMinAge      time.Duration // stream younger than this is warming up, not stale
	OrderTimeout      time.Duration // pending submission resolution window
	EmptyResultGrace  time.Duration // empty REST page vs. non-empty cache
	AccountRefresh    time.Duration
	MonitorInterval   time.Duration
	DelayedRefresh    time.Duration // refresh scheduled after mutating calls
	MidTTL            time.Duration
	RetryAttempts     int
	RetryBackoff      Backoff
	QueueCapacity     int
	Streaming         bool
	// OnReconcile observes every executed reconcile, e.g. for the audit
	// journal. Must not block.
	OnReconcile func(venue enum.Venue, reason enum.ReconcileReason)
}

func (c Config) withDefaults() Config {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&c.ReconcileInterval, 5*time.Minute)
	def(&c.ReconcileMinGap, 20*time.Second)
	def(&c.StalenessWindow, 90*time.Second)
	def(&c.StreamMinAge, 30*time.Second)
	def(&c.OrderTimeout, 30*time.Second)
	def(&c.EmptyResultGrace, 45*time.Second)
	def(&c.AccountRefresh, 30*time.Second)
	def(&c.MonitorInterval, 5*time.Second)
	def(&c.DelayedRefresh, 2*time.Second)
	def(&c.MidTTL, 5*time.Second)
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff == (Backoff{}) {
		c.RetryBackoff = DefaultBackoff()
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 1024
	}
	return c
}

type midPoint struct {
	price float64
	at    time.Time
}

// Gateway keeps a best-effort-consistent local picture of one venue,
// merging the push feed with REST polling and deciding when a full REST
// re-sync is warranted.
type Gateway struct {
	cfg      Config
	driver   venue.Driver
	hub      *bus.Hub
	counters *obs.Counters

	mu                    sync.Mutex
	symbols               map[string]adapter.SymbolConfig
	orders                map[string]venue.RawOrder
	ordersFromStream      bool
	havePolledOrders      bool
	lastNonEmptyOrders    time.Time
	positions             []adapter.Position
	positionsFromStream   bool
	havePolledPositions   bool
	lastNonEmptyPositions time.Time
	account               adapter.AccountSummary
	accountAt             time.Time
	haveAccount           bool
	mids                  map[string]midPoint
	recon                 reconcileState

	running      atomic.Bool
	cancelStream context.CancelFunc
	events       chan venue.StreamEvent
	unsubscribes []func()
	wg           sync.WaitGroup
}

func New(driver venue.Driver, cfg Config, counters *obs.Counters) *Gateway {
	return &Gateway{
		cfg:      cfg.withDefaults(),
		driver:   driver,
		hub:      bus.NewHub(),
		counters: counters,
		orders:   make(map[string]venue.RawOrder),
		mids:     make(map[string]midPoint),
		recon:    newReconcileState(),
	}
}

func (g *Gateway) Venue() enum.Venue {
	return g.driver.Venue()
}

// RegisterSubscriber returns a per-caller bounded queue on the event bus.
func (g *Gateway) RegisterSubscriber() (uint64, *bus.Queue) {
	return g.hub.Register(g.cfg.QueueCapacity)
}

func (g *Gateway) UnregisterSubscriber(id uint64) {
	g.hub.Unregister(id)
}

// LoadConfigs fetches and caches symbol metadata. It must succeed before
// any sizing or order placement.
func (g *Gateway) LoadConfigs(ctx context.Context) error {
	configs, err := retry(ctx, g.cfg.RetryAttempts, g.cfg.RetryBackoff, "fetch symbol configs",
		func(ctx context.Context) (map[string]adapter.SymbolConfig, error) {
			return g.driver.FetchSymbolConfigs(ctx)
		})
	if err != nil {
		return errors.Wrap(err, "load configs")
	}
	if len(configs) == 0 {
		return exception.ErrGatewayNoInstruments
	}

	g.mu.Lock()
	g.symbols = configs
	g.mu.Unlock()
	return nil
}

// SymbolConfig returns the cached metadata for one symbol.
func (g *Gateway) SymbolConfig(symbol string) (adapter.SymbolConfig, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.symbols) == 0 {
		return adapter.SymbolConfig{}, exception.ErrGatewayConfigsMissing
	}
	cfg, ok := g.symbols[symbol]
	if !ok {
		return adapter.SymbolConfig{}, errors.Wrap(exception.ErrGatewayUnknownSymbol, symbol)
	}
	return cfg, nil
}

// OpenOrders returns the current view of open orders. forceRest bypasses
// the cache; publish additionally emits the result on the event bus.
func (g *Gateway) OpenOrders(ctx context.Context, forceRest, publish bool) ([]venue.RawOrder, error) {
	g.mu.Lock()
	cached, haveCache := g.cachedOrdersLocked()
	g.mu.Unlock()

	if !forceRest && haveCache {
		if publish {
			g.publishOrders(cached)
		}
		return cached, nil
	}

	fetched, err := retry(ctx, g.cfg.RetryAttempts, g.cfg.RetryBackoff, "fetch open orders",
		func(ctx context.Context) ([]venue.RawOrder, error) {
			return g.driver.FetchOpenOrders(ctx)
		})
	if err != nil {
		if haveCache {
			g.counters.IncRestFallback("orders")
			logs.Warnf("open orders poll failed, serving cache: %v", err)
			return cached, nil
		}
		return nil, err
	}

	g.mu.Lock()
	out := g.applyRestOrdersLocked(fetched)
	g.mu.Unlock()

	if publish {
		g.publishOrders(out)
	}
	return out, nil
}

// OpenPositions mirrors OpenOrders for positions.
func (g *Gateway) OpenPositions(ctx context.Context, forceRest, publish bool) ([]adapter.Position, error) {
	g.mu.Lock()
	cached, haveCache := g.cachedPositionsLocked()
	g.mu.Unlock()

	if !forceRest && haveCache {
		if publish {
			g.publishPositions(cached)
		}
		return cached, nil
	}

	fetched, err := retry(ctx, g.cfg.RetryAttempts, g.cfg.RetryBackoff, "fetch open positions",
		func(ctx context.Context) ([]adapter.Position, error) {
			return g.driver.FetchOpenPositions(ctx)
		})
	if err != nil {
		if haveCache {
			g.counters.IncRestFallback("positions")
			logs.Warnf("open positions poll failed, serving cache: %v", err)
			return cached, nil
		}
		return nil, err
	}

	g.mu.Lock()
	out := g.applyRestPositionsLocked(fetched)
	g.mu.Unlock()

	if publish {
		g.publishPositions(out)
	}
	return out, nil
}

// AccountSummary returns the venue account state with the embedded stream
// health snapshot.
func (g *Gateway) AccountSummary(ctx context.Context, forceRest bool) (adapter.AccountSummary, error) {
	g.mu.Lock()
	cached := g.account
	haveCache := g.haveAccount
	g.mu.Unlock()

	if !forceRest && haveCache {
		return g.withHealth(cached), nil
	}

	fetched, err := retry(ctx, g.cfg.RetryAttempts, g.cfg.RetryBackoff, "fetch account summary",
		func(ctx context.Context) (adapter.AccountSummary, error) {
			return g.driver.FetchAccountSummary(ctx)
		})
	if err != nil {
		if haveCache {
			g.counters.IncRestFallback("account")
			return g.withHealth(cached), nil
		}
		return adapter.AccountSummary{}, err
	}
	fetched.Venue = g.Venue()
	if fetched.UpnlSource == "" {
		fetched.UpnlSource = "rest"
	}

	g.mu.Lock()
	g.account = fetched
	g.accountAt = time.Now()
	g.haveAccount = true
	g.mu.Unlock()
	return g.withHealth(fetched), nil
}

// MarkPrice returns a recent mark price for the symbol, cached briefly.
func (g *Gateway) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	now := time.Now()
	g.mu.Lock()
	mid, ok := g.mids[symbol]
	g.mu.Unlock()
	if ok && now.Sub(mid.at) < g.cfg.MidTTL {
		return mid.price, nil
	}

	price, err := retry(ctx, g.cfg.RetryAttempts, g.cfg.RetryBackoff, "fetch mark price",
		func(ctx context.Context) (float64, error) {
			return g.driver.FetchMarkPrice(ctx, symbol)
		})
	if err != nil {
		if ok {
			g.counters.IncRestFallback("mark_price")
			return mid.price, nil
		}
		return 0, err
	}
	if price <= 0 {
		if ok {
			return mid.price, nil
		}
		return 0, errors.Wrap(exception.ErrGatewayNoData, symbol)
	}

	g.mu.Lock()
	g.mids[symbol] = midPoint{price: price, at: now}
	g.mu.Unlock()
	return price, nil
}

// PlaceOrder submits a mutating order call. Created orders are tracked as
// pending until a matching stream update or terminal status resolves them.
func (g *Gateway) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	if _, err := g.SymbolConfig(req.Symbol); err != nil {
		return venue.OrderResult{}, err
	}

	res, err := g.driver.PlaceOrder(ctx, req)
	if err != nil {
		return venue.OrderResult{}, errors.Wrap(err, "place order").
			With("symbol", req.Symbol).
			With("side", req.Side.String())
	}

	id := res.OrderID
	if id == "" {
		id = res.ClientOrderID
	}
	if id == "" {
		id = req.ClientOrderID
	}
	if id != "" && !res.Status.IsTerminal() {
		g.mu.Lock()
		g.recon.pendingSubmitted[id] = time.Now()
		g.mu.Unlock()
	}

	g.scheduleDelayedRefresh()
	return res, nil
}

// CancelOrder cancels one order on the venue.
func (g *Gateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := g.driver.CancelOrder(ctx, symbol, orderID); err != nil {
		return errors.Wrap(err, "cancel order").With("symbol", symbol).With("order_id", orderID)
	}
	g.mu.Lock()
	delete(g.orders, orderID)
	delete(g.recon.pendingSubmitted, orderID)
	g.mu.Unlock()
	g.scheduleDelayedRefresh()
	return nil
}

// UpdateTargets places protective trigger orders for the requested legs.
// Legs are independent venue calls; partial failure is reported, never
// rolled back.
func (g *Gateway) UpdateTargets(ctx context.Context, symbol string, side enum.OrderSide, size float64, pair adapter.TargetPair) error {
	if pair.IsEmpty() {
		return exception.ErrOrderInvalidRequest
	}
	if size <= 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "target size %v", size)
	}

	closeSide := enum.OrderSideSell
	if side == enum.OrderSideSell {
		closeSide = enum.OrderSideBuy
	}

	var firstErr error
	place := func(kind enum.OrderKind, trigger float64) {
		_, err := g.PlaceOrder(ctx, venue.OrderRequest{
			Symbol:       symbol,
			Side:         closeSide,
			Kind:         kind,
			Size:         size,
			TriggerPrice: trigger,
			ReduceOnly:   true,
			Tpsl:         true,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if pair.TakeProfit != nil {
		place(enum.OrderKindTakeProfitMarket, *pair.TakeProfit)
	}
	if pair.StopLoss != nil {
		place(enum.OrderKindStopMarket, *pair.StopLoss)
	}
	return firstErr
}

// CancelTpslOrders cancels cached protective orders for the symbol. With no
// legs given, both legs are canceled.
func (g *Gateway) CancelTpslOrders(ctx context.Context, symbol string, legs ...enum.TargetLeg) error {
	wantLeg := func(kind enum.OrderKind) bool {
		if len(legs) == 0 {
			return true
		}
		for _, leg := range legs {
			if leg == enum.TargetLegTakeProfit && kind == enum.OrderKindTakeProfitMarket {
				return true
			}
			if leg == enum.TargetLegStopLoss && kind == enum.OrderKindStopMarket {
				return true
			}
		}
		return false
	}

	g.mu.Lock()
	var targets []venue.RawOrder
	for _, raw := range g.orders {
		o := raw.Order
		if o.Symbol != symbol || !o.TpslFlag.IsTrue() || !o.Kind.IsTrigger() {
			continue
		}
		if wantLeg(o.Kind) {
			targets = append(targets, raw)
		}
	}
	g.mu.Unlock()

	var firstErr error
	for _, raw := range targets {
		if err := g.CancelOrder(ctx, symbol, raw.Order.IdentityKey()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ClearRuntimeState drops all caches and reconcile state. Called on venue
// deactivation; configs survive so a later switch-back can reuse them.
func (g *Gateway) ClearRuntimeState() {
	g.mu.Lock()
	g.orders = make(map[string]venue.RawOrder)
	g.ordersFromStream = false
	g.havePolledOrders = false
	g.lastNonEmptyOrders = time.Time{}
	g.positions = nil
	g.positionsFromStream = false
	g.havePolledPositions = false
	g.lastNonEmptyPositions = time.Time{}
	g.haveAccount = false
	g.account = adapter.AccountSummary{}
	g.accountAt = time.Time{}
	g.mids = make(map[string]midPoint)
	g.recon = newReconcileState()
	g.mu.Unlock()
	g.counters.Reset()
}

func (g *Gateway) cachedOrdersLocked() ([]venue.RawOrder, bool) {
	if !g.havePolledOrders && !g.ordersFromStream {
		return nil, false
	}
	out := make([]venue.RawOrder, 0, len(g.orders))
	for _, raw := range g.orders {
		out = append(out, raw)
	}
	return out, true
}

func (g *Gateway) cachedPositionsLocked() ([]adapter.Position, bool) {
	if !g.havePolledPositions && !g.positionsFromStream {
		return nil, false
	}
	out := make([]adapter.Position, len(g.positions))
	copy(out, g.positions)
	return out, true
}

// applyRestOrdersLocked stores a REST snapshot. An empty page against a
// previously non-empty cache is held back until the grace period elapses.
func (g *Gateway) applyRestOrdersLocked(fetched []venue.RawOrder) []venue.RawOrder {
	now := time.Now()
	if len(fetched) == 0 && len(g.orders) > 0 &&
		!g.lastNonEmptyOrders.IsZero() && now.Sub(g.lastNonEmptyOrders) < g.cfg.EmptyResultGrace {
		logs.Warnf("empty orders page within grace period, keeping %d cached", len(g.orders))
		out, _ := g.cachedOrdersLocked()
		return out
	}

	g.orders = make(map[string]venue.RawOrder, len(fetched))
	for i := range fetched {
		fetched[i].Order.ObservedAt = now
		raw := fetched[i]
		key := raw.Order.IdentityKey()
		g.orders[key] = raw
		delete(g.recon.pendingSubmitted, key)
		if raw.Order.ClientOrderID != "" {
			delete(g.recon.pendingSubmitted, raw.Order.ClientOrderID)
		}
	}
	g.havePolledOrders = true
	g.ordersFromStream = false
	if len(fetched) > 0 {
		g.lastNonEmptyOrders = now
	}

	out, _ := g.cachedOrdersLocked()
	return out
}

func (g *Gateway) applyRestPositionsLocked(fetched []adapter.Position) []adapter.Position {
	now := time.Now()
	filtered := filterPositions(fetched)
	if len(filtered) == 0 && len(g.positions) > 0 &&
		!g.lastNonEmptyPositions.IsZero() && now.Sub(g.lastNonEmptyPositions) < g.cfg.EmptyResultGrace {
		logs.Warnf("empty positions page within grace period, keeping %d cached", len(g.positions))
		out, _ := g.cachedPositionsLocked()
		return out
	}

	g.positions = filtered
	g.havePolledPositions = true
	g.positionsFromStream = false
	if len(filtered) > 0 {
		g.lastNonEmptyPositions = now
	}

	out, _ := g.cachedPositionsLocked()
	return out
}

func filterPositions(in []adapter.Position) []adapter.Position {
	out := make([]adapter.Position, 0, len(in))
	for _, p := range in {
		if p.Size <= 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (g *Gateway) publishOrders(raws []venue.RawOrder) {
	normalized := make([]adapter.Order, 0, len(raws))
	for _, raw := range raws {
		normalized = append(normalized, raw.Order)
	}
	g.hub.Publish(bus.Event{Type: enum.EventOrdersRaw, Venue: g.Venue(), Payload: raws})
	g.hub.Publish(bus.Event{Type: enum.EventOrders, Venue: g.Venue(), Payload: normalized})
}

func (g *Gateway) publishPositions(positions []adapter.Position) {
	g.hub.Publish(bus.Event{Type: enum.EventPositions, Venue: g.Venue(), Payload: positions})
}

func (g *Gateway) publishAccount(summary adapter.AccountSummary) {
	g.hub.Publish(bus.Event{Type: enum.EventAccount, Venue: g.Venue(), Payload: g.withHealth(summary)})
}

func (g *Gateway) withHealth(summary adapter.AccountSummary) adapter.AccountSummary {
	g.mu.Lock()
	summary.Health = g.healthLocked()
	if !g.accountAt.IsZero() {
		summary.UpnlAgeSec = time.Since(g.accountAt).Seconds()
	}
	g.mu.Unlock()
	summary.Health.RestFallbacks = g.counters.RestFallbacks()
	return summary
}

func (g *Gateway) scheduleDelayedRefresh() {
	if !g.running.Load() {
		return
	}
	time.AfterFunc(g.cfg.DelayedRefresh, func() {
		if !g.running.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := g.OpenOrders(ctx, true, true); err != nil {
			logs.Warnf("delayed orders refresh failed: %v", err)
		}
		if _, err := g.OpenPositions(ctx, true, true); err != nil {
			logs.Warnf("delayed positions refresh failed: %v", err)
		}
	})
}
