package hyper

import (
	"context"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"main/internal/adapter/enum"
	"main/internal/venue"
)

func TestDecodeOpenOrders(t *testing.T) {
	body := []byte(`[
		{
			"coin": "BTC",
			"oid": 77738308,
			"side": "A",
			"limitPx": "0",
			"sz": "0.5",
			"origSz": "0.5",
			"triggerPx": "94000.0",
			"orderType": "Stop Market",
			"isPositionTpsl": true,
			"reduceOnly": true,
			"timestamp": 1700000000000
		},
		{
			"coin": "ETH",
			"oid": 77738309,
			"cloid": "0xdeadbeef",
			"side": "B",
			"limitPx": "3100.5",
			"sz": "1.0",
			"origSz": "2.0",
			"orderType": "Limit"
		}
	]`)

	var orders []hyperOrder
	require.NoError(t, sonic.ConfigFastest.Unmarshal(body, &orders))
	require.Len(t, orders, 2)

	sl := rawOrder(orders[0], "open")
	require.Equal(t, enum.VenueHyper, sl.Order.Venue)
	require.Equal(t, "77738308", sl.Order.OrderID)
	require.Equal(t, enum.OrderSideSell, sl.Order.Side)
	require.Equal(t, enum.OrderKindStopMarket, sl.Order.Kind)
	require.Equal(t, enum.OrderStatusOpen, sl.Order.Status)
	require.True(t, sl.Order.TpslFlag.IsTrue())
	require.True(t, sl.Order.ReduceOnly.IsTrue())
	require.Equal(t, 94000.0, sl.Order.TriggerPrice)

	trigger, ok := sl.FirstFloat("triggerPx")
	require.True(t, ok)
	require.Equal(t, 94000.0, trigger)

	limit := rawOrder(orders[1], "open")
	require.Equal(t, "0xdeadbeef", limit.Order.ClientOrderID)
	require.Equal(t, enum.OrderSideBuy, limit.Order.Side)
	require.Equal(t, enum.OrderKindLimit, limit.Order.Kind)
	require.Equal(t, 2.0, limit.Order.Size)
	require.Equal(t, 1.0, limit.Order.FilledSize)
	require.Equal(t, 3100.5, limit.Order.LimitPrice)
	require.False(t, limit.Order.TpslFlag.IsTrue())
}

func TestDecodeClearinghouseState(t *testing.T) {
	body := []byte(`{
		"assetPositions": [
			{"position": {"coin": "BTC", "szi": "0.25", "entryPx": "97000", "unrealizedPnl": "120.5"}},
			{"position": {"coin": "ETH", "szi": "-3", "entryPx": "3200", "unrealizedPnl": "-45"}},
			{"position": {"coin": "SOL", "szi": "0", "entryPx": "0", "unrealizedPnl": "0"}}
		],
		"marginSummary": {"accountValue": "5231.7", "totalMarginUsed": "812.3"},
		"withdrawable": "4419.4"
	}`)

	var state clearinghouseState
	require.NoError(t, sonic.ConfigFastest.Unmarshal(body, &state))

	got := positions(state)
	require.Len(t, got, 2, "flat positions are filtered out")

	require.Equal(t, enum.PositionSideLong, got[0].Side)
	require.Equal(t, 0.25, got[0].Size)
	require.Equal(t, 120.5, *got[0].UnrealizedPnl)

	require.Equal(t, enum.PositionSideShort, got[1].Side)
	require.Equal(t, 3.0, got[1].Size, "short size is reported positive")

	summary := accountSummary(state)
	require.Equal(t, 5231.7, summary.Equity)
	require.Equal(t, 812.3, summary.MarginUsed)
	require.Equal(t, 4419.4, summary.Withdrawable)
}

func TestSharedWebDataSubscription(t *testing.T) {
	require.Equal(t, _subWebData, subscriptionType(venue.ChannelPositions))
	require.Equal(t, _subWebData, subscriptionType(venue.ChannelAccount))
	require.Equal(t, _subOrderUpdates, subscriptionType(venue.ChannelOrders))
	require.Empty(t, subscriptionType("trades"))

	// positions and account share one Once, so webData2 is subscribed once
	d := New(context.Background(), Config{}, nil)
	require.Len(t, d.subOnce, 2)
	require.Same(t, d.subOnce[subscriptionType(venue.ChannelPositions)],
		d.subOnce[subscriptionType(venue.ChannelAccount)])
}

func TestOrderStatusMapping(t *testing.T) {
	require.Equal(t, enum.OrderStatusOpen, orderStatus("open"))
	require.Equal(t, enum.OrderStatusOpen, orderStatus(""))
	require.Equal(t, enum.OrderStatusFilled, orderStatus("filled"))
	require.Equal(t, enum.OrderStatusTriggered, orderStatus("triggered"))
	require.Equal(t, enum.OrderStatusCanceled, orderStatus("marginCanceled"))
	require.Equal(t, enum.OrderStatusUnknown, orderStatus("weird"))
	require.True(t, orderStatus("canceled").IsTerminal())
}
