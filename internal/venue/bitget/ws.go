package bitget

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/adapter"
	"main/internal/venue"
	"main/pkg/exception"
)

type wsEnvelope struct {
	Event  string `json:"event"`
	Action string `json:"action"`
	Code   string `json:"code"`
	Arg    struct {
		InstType string `json:"instType"`
		Channel  string `json:"channel"`
	} `json:"arg"`
	Data any `json:"data"`
}

// Subscribe attaches a handler to one private channel, logging in and
// sending the venue subscription on first use.
func (d *Driver) Subscribe(ctx context.Context, channel string, handler func(venue.StreamEvent)) (func(), error) {
	wsChannel := wsChannelName(channel)
	if wsChannel == "" {
		return nil, errors.Wrap(exception.ErrVenueUnsupported, channel)
	}

	if err := d.startWebsocket(ctx); err != nil {
		return nil, err
	}
	if err := d.subscribeOnce(ctx, channel, wsChannel); err != nil {
		return nil, err
	}

	return d.observe(ctx, channel, wsChannel, handler), nil
}

func wsChannelName(channel string) string {
	switch channel {
	case venue.ChannelOrders:
		return "orders"
	case venue.ChannelPositions:
		return "positions"
	case venue.ChannelAccount:
		return "account"
	default:
		return ""
	}
}

// startWebsocket opens the socket and authenticates, once.
func (d *Driver) startWebsocket(ctx context.Context) error {
	d.wsOnce.Do(func() {
		err := d.wss.Start(ctx, ws.Sidecar{
			Sender: func(ctx context.Context, client *ws.WebSocket) error {
				timestamp := strconv.FormatInt(time.Now().Unix(), 10)
				payload := map[string]any{
					"op": "login",
					"args": []any{map[string]any{
						"apiKey":     d.cfg.APIKey,
						"passphrase": d.cfg.Passphrase,
						"timestamp":  timestamp,
						"sign":       d.sign(timestamp, "GET", "/user/verify", nil),
					}},
				}
				if err := client.WriteJSON(payload); err != nil {
					return errors.Wrap(err, "write login payload")
				}
				return nil
			},
			Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
				resp, ok := ws.ReadMessage[wsEnvelope](m)
				if !ok || resp.Event != "login" {
					return false, nil
				}
				if resp.Code != "" && resp.Code != "0" {
					return false, errors.Errorf("login rejected, code %s", resp.Code)
				}
				return true, nil
			},
		})
		if err != nil {
			d.wsErr = errors.Wrap(err, "start wss")
		}
	})
	return d.wsErr
}

func (d *Driver) subscribeOnce(ctx context.Context, channel, wsChannel string) error {
	var subErr error
	d.subOnce[channel].Do(func() {
		appendIntoRegister := true
		subErr = d.wss.SendAndWait(ctx, ws.Sidecar{
			Sender: func(ctx context.Context, client *ws.WebSocket) error {
				payload := map[string]any{
					"op": "subscribe",
					"args": []any{map[string]any{
						"instType": _productType,
						"channel":  wsChannel,
						"instId":   "default",
					}},
				}
				if err := client.WriteJSON(payload); err != nil {
					return errors.Wrap(err, "write subscribe payload").With("channel", wsChannel)
				}
				return nil
			},
			Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
				resp, ok := ws.ReadMessage[wsEnvelope](m)
				if !ok || resp.Event != "subscribe" {
					return false, nil
				}
				return resp.Arg.Channel == wsChannel, nil
			},
		}, appendIntoRegister)
	})
	return subErr
}

func (d *Driver) observe(ctx context.Context, channel, wsChannel string, handler func(venue.StreamEvent)) (unsubscribe func()) {
	ch, cancel := d.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				envelope, ok := ws.ReadMessage[wsEnvelope](m)
				if !ok || envelope.Event != "" || envelope.Arg.Channel != wsChannel {
					continue
				}

				event, ok := d.decodeEvent(channel, envelope.Data)
				if !ok {
					continue
				}
				handler(event)
			}
		}
	}()

	return cancel
}

func (d *Driver) decodeEvent(channel string, data any) (venue.StreamEvent, bool) {
	raw, err := sonic.ConfigFastest.Marshal(data)
	if err != nil {
		return venue.StreamEvent{}, false
	}

	event := venue.StreamEvent{Venue: d.Venue(), Channel: channel}
	switch channel {
	case venue.ChannelOrders:
		var orders []bitgetOrder
		if err := sonic.ConfigFastest.Unmarshal(raw, &orders); err != nil {
			return venue.StreamEvent{}, false
		}
		event.Orders = make([]venue.RawOrder, 0, len(orders))
		for _, o := range orders {
			event.Orders = append(event.Orders, rawOrder(o))
		}
	case venue.ChannelPositions:
		var entries []positionEntry
		if err := sonic.ConfigFastest.Unmarshal(raw, &entries); err != nil {
			return venue.StreamEvent{}, false
		}
		event.Positions = make([]adapter.Position, 0, len(entries))
		for _, entry := range entries {
			event.Positions = append(event.Positions, position(entry))
		}
	case venue.ChannelAccount:
		var entries []accountEntry
		if err := sonic.ConfigFastest.Unmarshal(raw, &entries); err != nil {
			return venue.StreamEvent{}, false
		}
		summary := accountSummary(entries)
		summary.UpnlSource = "ws"
		event.Account = &summary
	default:
		return venue.StreamEvent{}, false
	}
	return event, true
}
