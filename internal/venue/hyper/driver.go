package hyper

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/ws"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/venue"
	"main/pkg/exception"
)

const (
	_hyperBaseUrl   = "https://api.hyper.exchange"
	_hyperBaseWsUrl = "wss://api.hyper.exchange/ws"

	_hyperInfoPath     = "/info"
	_hyperExchangePath = "/exchange"
)

// Config carries the hyper venue endpoints and signing material.
type Config struct {
	RestURL   string
	WsURL     string
	Wallet    string
	APISecret string
}

// Driver implements venue.Driver against the hyper derivatives API.
type Driver struct {
	client *http.Client
	wss    *ws.WebSocket
	cfg    Config

	wsOnce  sync.Once
	wsErr   error
	subOnce map[string]*sync.Once
}

func New(ctx context.Context, cfg Config, client *http.Client) *Driver {
	if cfg.RestURL == "" {
		cfg.RestURL = _hyperBaseUrl
	}
	if cfg.WsURL == "" {
		cfg.WsURL = _hyperBaseWsUrl
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Driver{
		client: client,
		wss:    ws.New(ctx, cfg.WsURL),
		cfg:    cfg,
		// keyed by venue subscription type: positions and account share
		// webData2, so they share one subscribe.
		subOnce: map[string]*sync.Once{
			_subOrderUpdates: {},
			_subWebData:      {},
		},
	}
}

func (d *Driver) Venue() enum.Venue {
	return enum.VenueHyper
}

func (d *Driver) FetchSymbolConfigs(ctx context.Context) (map[string]adapter.SymbolConfig, error) {
	var meta metaResponse
	if err := d.info(ctx, map[string]any{"type": "meta"}, &meta); err != nil {
		return nil, err
	}

	out := make(map[string]adapter.SymbolConfig, len(meta.Universe))
	for _, entry := range meta.Universe {
		out[entry.Name] = entry.symbolConfig()
	}
	return out, nil
}

func (d *Driver) FetchOpenOrders(ctx context.Context) ([]venue.RawOrder, error) {
	var orders []hyperOrder
	body := map[string]any{"type": "frontendOpenOrders", "user": d.cfg.Wallet}
	if err := d.info(ctx, body, &orders); err != nil {
		return nil, err
	}

	out := make([]venue.RawOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, rawOrder(o, "open"))
	}
	return out, nil
}

func (d *Driver) FetchOpenPositions(ctx context.Context) ([]adapter.Position, error) {
	state, err := d.clearinghouse(ctx)
	if err != nil {
		return nil, err
	}
	return positions(state), nil
}

func (d *Driver) FetchAccountSummary(ctx context.Context) (adapter.AccountSummary, error) {
	state, err := d.clearinghouse(ctx)
	if err != nil {
		return adapter.AccountSummary{}, err
	}
	return accountSummary(state), nil
}

func (d *Driver) FetchMarkPrice(ctx context.Context, symbol string) (float64, error) {
	var mids map[string]decimal.Decimal
	if err := d.info(ctx, map[string]any{"type": "allMids"}, &mids); err != nil {
		return 0, err
	}
	mid, ok := mids[symbol]
	if !ok {
		return 0, errors.Wrap(exception.ErrGatewayUnknownSymbol, symbol)
	}
	return dec(mid), nil
}

func (d *Driver) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	isBuy := req.Side == enum.OrderSideBuy

	orderPayload := map[string]any{
		"coin":       req.Symbol,
		"isBuy":      isBuy,
		"sz":         strconv.FormatFloat(req.Size, 'f', -1, 64),
		"reduceOnly": req.ReduceOnly,
	}
	if req.LimitPrice > 0 {
		orderPayload["limitPx"] = strconv.FormatFloat(req.LimitPrice, 'f', -1, 64)
	}
	if req.ClientOrderID != "" {
		orderPayload["cloid"] = req.ClientOrderID
	}

	switch req.Kind {
	case enum.OrderKindLimit:
		orderPayload["orderType"] = map[string]any{"limit": map[string]any{"tif": "Gtc"}}
	case enum.OrderKindMarket:
		orderPayload["orderType"] = map[string]any{"limit": map[string]any{"tif": "Ioc"}}
	case enum.OrderKindStopMarket, enum.OrderKindTakeProfitMarket:
		tpsl := "sl"
		if req.Kind == enum.OrderKindTakeProfitMarket {
			tpsl = "tp"
		}
		orderPayload["orderType"] = map[string]any{"trigger": map[string]any{
			"triggerPx": strconv.FormatFloat(req.TriggerPrice, 'f', -1, 64),
			"isMarket":  true,
			"tpsl":      tpsl,
		}}
	default:
		return venue.OrderResult{}, exception.ErrOrderInvalidRequest
	}

	grouping := "na"
	if req.Tpsl {
		grouping = "positionTpsl"
	}

	action := map[string]any{
		"type":     "order",
		"orders":   []any{orderPayload},
		"grouping": grouping,
	}

	var resp placeResponse
	if err := d.exchange(ctx, action, &resp); err != nil {
		return venue.OrderResult{}, err
	}
	if resp.Status != "ok" {
		return venue.OrderResult{}, errors.Wrap(exception.ErrOrderPlaceFailed, resp.Status)
	}

	result := venue.OrderResult{ClientOrderID: req.ClientOrderID, Status: enum.OrderStatusOpen}
	for _, status := range resp.Response.Data.Statuses {
		switch {
		case status.Error != "":
			return venue.OrderResult{}, errors.Wrap(exception.ErrOrderPlaceFailed, status.Error)
		case status.Resting != nil:
			result.OrderID = strconv.FormatInt(status.Resting.Oid, 10)
			if status.Resting.Cloid != "" {
				result.ClientOrderID = status.Resting.Cloid
			}
		case status.Filled != nil:
			result.OrderID = strconv.FormatInt(status.Filled.Oid, 10)
			result.Status = enum.OrderStatusFilled
		}
	}
	return result, nil
}

func (d *Driver) CancelOrder(ctx context.Context, symbol, orderID string) error {
	oid, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrap(exception.ErrOrderInvalidRequest, orderID)
	}

	action := map[string]any{
		"type":    "cancel",
		"cancels": []any{map[string]any{"coin": symbol, "oid": oid}},
	}

	var resp placeResponse
	if err := d.exchange(ctx, action, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return errors.Wrapf(exception.ErrVenueHTTPStatus, "cancel status %s", resp.Status)
	}
	return nil
}

// info posts a read-only query to the info endpoint.
func (d *Driver) info(ctx context.Context, body, out any) error {
	return d.post(ctx, _hyperInfoPath, body, out)
}

// exchange posts a signed mutating action.
func (d *Driver) exchange(ctx context.Context, action, out any) error {
	nonce := time.Now().UnixMilli()
	actionJSON, err := sonic.ConfigFastest.Marshal(action)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, []byte(d.cfg.APISecret))
	mac.Write([]byte(strconv.FormatInt(nonce, 10)))
	mac.Write(actionJSON)

	return d.post(ctx, _hyperExchangePath, map[string]any{
		"action":    action,
		"nonce":     nonce,
		"wallet":    d.cfg.Wallet,
		"signature": hex.EncodeToString(mac.Sum(nil)),
	}, out)
}

func (d *Driver) post(ctx context.Context, path string, body, out any) error {
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.RestURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(exception.ErrVenueHTTPStatus, "%s returned %d", path, resp.StatusCode)
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(exception.ErrVenueDecodeResponse, err.Error())
	}
	return nil
}

func (d *Driver) clearinghouse(ctx context.Context) (clearinghouseState, error) {
	var state clearinghouseState
	body := map[string]any{"type": "clearinghouseState", "user": d.cfg.Wallet}
	if err := d.info(ctx, body, &state); err != nil {
		return clearinghouseState{}, err
	}
	return state, nil
}
