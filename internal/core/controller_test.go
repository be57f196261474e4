package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/gateway"
	"main/internal/obs"
	"main/internal/order"
	"main/internal/venue"
	"main/pkg/exception"
)

type fakeDriver struct {
	venueID enum.Venue
	configs map[string]adapter.SymbolConfig
}

func (d *fakeDriver) Venue() enum.Venue { return d.venueID }

func (d *fakeDriver) FetchSymbolConfigs(context.Context) (map[string]adapter.SymbolConfig, error) {
	return d.configs, nil
}

func (d *fakeDriver) FetchOpenOrders(context.Context) ([]venue.RawOrder, error) {
	return nil, nil
}

func (d *fakeDriver) FetchOpenPositions(context.Context) ([]adapter.Position, error) {
	return nil, nil
}

func (d *fakeDriver) FetchAccountSummary(context.Context) (adapter.AccountSummary, error) {
	return adapter.AccountSummary{}, nil
}

func (d *fakeDriver) FetchMarkPrice(context.Context, string) (float64, error) {
	return 0, nil
}

func (d *fakeDriver) PlaceOrder(context.Context, venue.OrderRequest) (venue.OrderResult, error) {
	return venue.OrderResult{}, nil
}

func (d *fakeDriver) CancelOrder(context.Context, string, string) error { return nil }

func (d *fakeDriver) Subscribe(context.Context, string, func(venue.StreamEvent)) (func(), error) {
	return func() {}, nil
}

func newPair(venueID enum.Venue, configs map[string]adapter.SymbolConfig) Pair {
	gw := gateway.New(&fakeDriver{venueID: venueID, configs: configs}, gateway.Config{RetryAttempts: 1}, obs.NewCounters())
	return Pair{Gateway: gw, Manager: order.New(gw, nil, order.Config{})}
}

func symbolSet() map[string]adapter.SymbolConfig {
	return map[string]adapter.SymbolConfig{"BTC": {Symbol: "BTC", TickSize: 0.1, StepSize: 0.001}}
}

func TestSwitchVenueNoOp(t *testing.T) {
	pairs := map[enum.Venue]Pair{
		enum.VenueHyper:  newPair(enum.VenueHyper, symbolSet()),
		enum.VenueBitget: newPair(enum.VenueBitget, symbolSet()),
	}
	c, err := New(pairs, enum.VenueHyper, nil)
	require.NoError(t, err)

	active, err := c.SwitchVenue(context.Background(), enum.VenueHyper)
	require.NoError(t, err)
	require.Equal(t, enum.VenueHyper, active)
}

func TestSwitchVenue(t *testing.T) {
	pairs := map[enum.Venue]Pair{
		enum.VenueHyper:  newPair(enum.VenueHyper, symbolSet()),
		enum.VenueBitget: newPair(enum.VenueBitget, symbolSet()),
	}
	c, err := New(pairs, enum.VenueHyper, nil)
	require.NoError(t, err)
	require.NoError(t, c.Activate(context.Background()))
	defer c.Shutdown()

	active, err := c.SwitchVenue(context.Background(), enum.VenueBitget)
	require.NoError(t, err)
	require.Equal(t, enum.VenueBitget, active)

	got, pair := c.Active()
	require.Equal(t, enum.VenueBitget, got)
	require.Equal(t, enum.VenueBitget, pair.Gateway.Venue())
	require.False(t, c.SwitchInProgress())
}

func TestSwitchVenueFailureRestoresOld(t *testing.T) {
	// empty config set makes the target venue fail to come up
	pairs := map[enum.Venue]Pair{
		enum.VenueHyper:  newPair(enum.VenueHyper, symbolSet()),
		enum.VenueBitget: newPair(enum.VenueBitget, nil),
	}
	c, err := New(pairs, enum.VenueHyper, nil)
	require.NoError(t, err)
	require.NoError(t, c.Activate(context.Background()))
	defer c.Shutdown()

	active, err := c.SwitchVenue(context.Background(), enum.VenueBitget)
	require.ErrorIs(t, err, exception.ErrVenueSwitchFailed)
	require.Equal(t, enum.VenueHyper, active)

	got, _ := c.Active()
	require.Equal(t, enum.VenueHyper, got)
	require.False(t, c.SwitchInProgress(), "flag must clear even on failure")

	// the restored venue still serves requests
	_, err = c.Manager().Orders(context.Background(), false)
	require.NoError(t, err)
}

func TestSwitchVenueUnknownTarget(t *testing.T) {
	pairs := map[enum.Venue]Pair{enum.VenueHyper: newPair(enum.VenueHyper, symbolSet())}
	c, err := New(pairs, enum.VenueHyper, nil)
	require.NoError(t, err)

	_, err = c.SwitchVenue(context.Background(), enum.VenueBitget)
	require.ErrorIs(t, err, exception.ErrVenueNotConfigured)
}
