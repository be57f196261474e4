package bitget

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"main/internal/adapter/enum"
)

func TestDecodePlanOrders(t *testing.T) {
	body := []byte(`{
		"code": "00000",
		"msg": "success",
		"data": {
			"entrustedList": [
				{
					"symbol": "BTCUSDT",
					"orderId": "1111",
					"side": "sell",
					"orderType": "market",
					"planType": "loss_plan",
					"status": "live",
					"size": "0.5",
					"triggerPrice": "94000",
					"presetStopLossPrice": "94000",
					"reduceOnly": "YES"
				},
				{
					"symbol": "ETHUSDT",
					"orderId": "2222",
					"clientOid": "cli-7",
					"side": "buy",
					"orderType": "limit",
					"status": "partially_filled",
					"size": "2",
					"baseVolume": "0.5",
					"price": "3100.5"
				}
			]
		}
	}`)

	var resp apiResponse[pendingOrders]
	require.NoError(t, sonic.ConfigFastest.Unmarshal(body, &resp))
	require.True(t, resp.ok())
	require.Len(t, resp.Data.EntrustedList, 2)

	sl := rawOrder(resp.Data.EntrustedList[0])
	require.Equal(t, enum.VenueBitget, sl.Order.Venue)
	require.Equal(t, enum.OrderKindStopMarket, sl.Order.Kind)
	require.Equal(t, enum.OrderStatusOpen, sl.Order.Status)
	require.True(t, sl.Order.TpslFlag.IsTrue())
	require.True(t, sl.Order.ReduceOnly.IsTrue())
	require.Equal(t, 94000.0, sl.Order.TriggerPrice)

	level, ok := sl.FirstFloat("presetStopLossPrice", "triggerPrice")
	require.True(t, ok)
	require.Equal(t, 94000.0, level)

	limit := rawOrder(resp.Data.EntrustedList[1])
	require.Equal(t, "cli-7", limit.Order.ClientOrderID)
	require.Equal(t, enum.OrderKindLimit, limit.Order.Kind)
	require.Equal(t, enum.OrderStatusOpen, limit.Order.Status)
	require.Equal(t, 0.5, limit.Order.FilledSize)
	require.False(t, limit.Order.TpslFlag.IsTrue())
	require.Equal(t, enum.TristateUnknown, limit.Order.ReduceOnly)
}

func TestDecodeContracts(t *testing.T) {
	body := []byte(`{
		"code": "00000",
		"data": [
			{"symbol": "BTCUSDT", "pricePlace": "1", "volumePlace": "3", "minTradeNum": "0.001", "maxLever": "125"}
		]
	}`)

	var resp apiResponse[[]contractEntry]
	require.NoError(t, sonic.ConfigFastest.Unmarshal(body, &resp))
	require.True(t, resp.ok())

	cfg := resp.Data[0].symbolConfig()
	require.Equal(t, "BTCUSDT", cfg.Symbol)
	require.InDelta(t, 0.1, cfg.TickSize, 1e-12)
	require.InDelta(t, 0.001, cfg.StepSize, 1e-12)
	require.Equal(t, 0.001, cfg.MinOrderSize)
	require.Equal(t, 125.0, cfg.MaxLeverage)
}

func TestDecodeAccount(t *testing.T) {
	body := []byte(`{
		"code": "00000",
		"data": [
			{"marginCoin": "USDT", "accountEquity": "5231.7", "locked": "812.3", "available": "4419.4"}
		]
	}`)

	var resp apiResponse[[]accountEntry]
	require.NoError(t, sonic.ConfigFastest.Unmarshal(body, &resp))

	summary := accountSummary(resp.Data)
	require.Equal(t, enum.VenueBitget, summary.Venue)
	require.Equal(t, 5231.7, summary.Equity)
	require.Equal(t, 812.3, summary.MarginUsed)
	require.Equal(t, 4419.4, summary.Withdrawable)
}

func TestRejectedEnvelope(t *testing.T) {
	var resp apiResponse[placeData]
	require.NoError(t, sonic.ConfigFastest.Unmarshal([]byte(`{"code": "40099", "msg": "param error"}`), &resp))
	require.False(t, resp.ok())
}
