package bitget

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/ws"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/venue"
	"main/pkg/exception"
)

const (
	_bitgetBaseUrl   = "https://api.bitget.com"
	_bitgetBaseWsUrl = "wss://ws.bitget.com/v2/ws/private"

	_contractsPath   = "/api/v2/mix/market/contracts"
	_tickerPath      = "/api/v2/mix/market/ticker"
	_pendingPath     = "/api/v2/mix/order/orders-pending"
	_planPendingPath = "/api/v2/mix/order/orders-plan-pending"
	_positionsPath   = "/api/v2/mix/position/all-position"
	_accountsPath    = "/api/v2/mix/account/accounts"
	_placeOrderPath  = "/api/v2/mix/order/place-order"
	_placeTpslPath   = "/api/v2/mix/order/place-tpsl-order"
	_cancelOrderPath = "/api/v2/mix/order/cancel-order"
	_marginCoin      = "USDT"
)

// Config carries the bitget credentials and endpoints.
type Config struct {
	RestURL    string
	WsURL      string
	APIKey     string
	APISecret  string
	Passphrase string
}

// Driver implements venue.Driver against the bitget mix (futures) API.
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
		cfg.RestURL = _bitgetBaseUrl
	}
	if cfg.WsURL == "" {
		cfg.WsURL = _bitgetBaseWsUrl
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Driver{
		client: client,
		wss:    ws.New(ctx, cfg.WsURL),
		cfg:    cfg,
		subOnce: map[string]*sync.Once{
			venue.ChannelOrders:    {},
			venue.ChannelPositions: {},
			venue.ChannelAccount:   {},
		},
	}
}

func (d *Driver) Venue() enum.Venue {
	return enum.VenueBitget
}

func (d *Driver) FetchSymbolConfigs(ctx context.Context) (map[string]adapter.SymbolConfig, error) {
	var resp apiResponse[[]contractEntry]
	query := url.Values{"productType": {_productType}}
	if err := d.get(ctx, _contractsPath, query, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]adapter.SymbolConfig, len(resp.Data))
	for _, entry := range resp.Data {
		out[entry.Symbol] = entry.symbolConfig()
	}
	return out, nil
}

// FetchOpenOrders merges the regular pending orders with the pending
// trigger/TPSL plan orders; protective levels only show up in the latter.
func (d *Driver) FetchOpenOrders(ctx context.Context) ([]venue.RawOrder, error) {
	var pending apiResponse[pendingOrders]
	query := url.Values{"productType": {_productType}}
	if err := d.get(ctx, _pendingPath, query, &pending); err != nil {
		return nil, err
	}

	var plans apiResponse[pendingOrders]
	planQuery := url.Values{"productType": {_productType}, "planType": {"profit_loss"}}
	if err := d.get(ctx, _planPendingPath, planQuery, &plans); err != nil {
		return nil, err
	}

	out := make([]venue.RawOrder, 0, len(pending.Data.EntrustedList)+len(plans.Data.EntrustedList))
	for _, o := range pending.Data.EntrustedList {
		out = append(out, rawOrder(o))
	}
	for _, o := range plans.Data.EntrustedList {
		out = append(out, rawOrder(o))
	}
	return out, nil
}

func (d *Driver) FetchOpenPositions(ctx context.Context) ([]adapter.Position, error) {
	var resp apiResponse[[]positionEntry]
	query := url.Values{"productType": {_productType}, "marginCoin": {_marginCoin}}
	if err := d.get(ctx, _positionsPath, query, &resp); err != nil {
		return nil, err
	}

	out := make([]adapter.Position, 0, len(resp.Data))
	for _, entry := range resp.Data {
		out = append(out, position(entry))
	}
	return out, nil
}

func (d *Driver) FetchAccountSummary(ctx context.Context) (adapter.AccountSummary, error) {
	var resp apiResponse[[]accountEntry]
	query := url.Values{"productType": {_productType}}
	if err := d.get(ctx, _accountsPath, query, &resp); err != nil {
		return adapter.AccountSummary{}, err
	}
	return accountSummary(resp.Data), nil
}

func (d *Driver) FetchMarkPrice(ctx context.Context, symbol string) (float64, error) {
	var resp apiResponse[[]tickerEntry]
	query := url.Values{"productType": {_productType}, "symbol": {symbol}}
	if err := d.get(ctx, _tickerPath, query, &resp); err != nil {
		return 0, err
	}
	for _, entry := range resp.Data {
		if entry.Symbol != symbol {
			continue
		}
		if mark := dec(entry.MarkPrice); mark > 0 {
			return mark, nil
		}
		return dec(entry.LastPr), nil
	}
	return 0, errors.Wrap(exception.ErrGatewayUnknownSymbol, symbol)
}

func (d *Driver) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	if req.Kind.IsTrigger() && req.Tpsl {
		return d.placeTpsl(ctx, req)
	}
	return d.placeRegular(ctx, req)
}

func (d *Driver) placeRegular(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	side := "buy"
	if req.Side == enum.OrderSideSell {
		side = "sell"
	}
	orderType := "limit"
	if req.Kind == enum.OrderKindMarket {
		orderType = "market"
	}

	body := map[string]any{
		"symbol":      req.Symbol,
		"productType": _productType,
		"marginCoin":  _marginCoin,
		"marginMode":  "crossed",
		"side":        side,
		"orderType":   orderType,
		"size":        strconv.FormatFloat(req.Size, 'f', -1, 64),
	}
	if req.LimitPrice > 0 {
		body["price"] = strconv.FormatFloat(req.LimitPrice, 'f', -1, 64)
	}
	if req.ReduceOnly {
		body["reduceOnly"] = "YES"
	}
	if req.ClientOrderID != "" {
		body["clientOid"] = req.ClientOrderID
	}

	var resp apiResponse[placeData]
	if err := d.post(ctx, _placeOrderPath, body, &resp); err != nil {
		return venue.OrderResult{}, err
	}
	return venue.OrderResult{
		OrderID:       resp.Data.OrderID,
		ClientOrderID: resp.Data.ClientOid,
		Status:        enum.OrderStatusOpen,
	}, nil
}

func (d *Driver) placeTpsl(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	planType := "loss_plan"
	if req.Kind == enum.OrderKindTakeProfitMarket {
		planType = "profit_plan"
	}
	// a sell closes a long position
	holdSide := "long"
	if req.Side == enum.OrderSideBuy {
		holdSide = "short"
	}

	body := map[string]any{
		"symbol":       req.Symbol,
		"productType":  _productType,
		"marginCoin":   _marginCoin,
		"planType":     planType,
		"holdSide":     holdSide,
		"triggerPrice": strconv.FormatFloat(req.TriggerPrice, 'f', -1, 64),
		"triggerType":  "mark_price",
		"size":         strconv.FormatFloat(req.Size, 'f', -1, 64),
	}
	if req.ClientOrderID != "" {
		body["clientOid"] = req.ClientOrderID
	}

	var resp apiResponse[placeData]
	if err := d.post(ctx, _placeTpslPath, body, &resp); err != nil {
		return venue.OrderResult{}, err
	}
	return venue.OrderResult{
		OrderID:       resp.Data.OrderID,
		ClientOrderID: resp.Data.ClientOid,
		Status:        enum.OrderStatusOpen,
	}, nil
}

func (d *Driver) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]any{
		"symbol":      symbol,
		"productType": _productType,
		"orderId":     orderID,
	}
	var resp apiResponse[placeData]
	return d.post(ctx, _cancelOrderPath, body, &resp)
}

func (d *Driver) get(ctx context.Context, path string, query url.Values, out interface{ ok() bool }) error {
	requestPath := path
	if len(query) != 0 {
		requestPath += "?" + query.Encode()
	}
	return d.send(ctx, http.MethodGet, requestPath, nil, out)
}

func (d *Driver) post(ctx context.Context, path string, body any, out interface{ ok() bool }) error {
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return err
	}
	return d.send(ctx, http.MethodPost, path, payload, out)
}

func (d *Driver) send(ctx context.Context, method, requestPath string, body []byte, out interface{ ok() bool }) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	r, err := http.NewRequestWithContext(ctx, method, d.cfg.RestURL+requestPath, bytes.NewReader(body))
	if err != nil {
		return err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("ACCESS-KEY", d.cfg.APIKey)
	r.Header.Set("ACCESS-TIMESTAMP", timestamp)
	r.Header.Set("ACCESS-PASSPHRASE", d.cfg.Passphrase)
	r.Header.Set("ACCESS-SIGN", d.sign(timestamp, method, requestPath, body))

	resp, err := d.client.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(exception.ErrVenueHTTPStatus, "%s returned %d", requestPath, resp.StatusCode)
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(exception.ErrVenueDecodeResponse, err.Error())
	}
	if !out.ok() {
		return errors.Wrapf(exception.ErrVenueHTTPStatus, "%s rejected", requestPath)
	}
	return nil
}

// sign computes base64(hmac-sha256(timestamp + method + path + body)).
func (d *Driver) sign(timestamp, method, requestPath string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(d.cfg.APISecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(method))
	mac.Write([]byte(requestPath))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
