package hyper

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/venue"
	"main/pkg/exception"
)

const (
	_subOrderUpdates = "orderUpdates"
	_subWebData      = "webData2"
)

type wsEnvelope struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

type subscribeAck struct {
	Channel string `json:"channel"`
	Data    struct {
		Subscription struct {
			Type string `json:"type"`
		} `json:"subscription"`
	} `json:"data"`
}

type webDataPush struct {
	ClearinghouseState clearinghouseState `json:"clearinghouseState"`
}

// Subscribe attaches a handler to one private channel, starting the socket
// and sending the venue subscription on first use.
func (d *Driver) Subscribe(ctx context.Context, channel string, handler func(venue.StreamEvent)) (func(), error) {
	if err := d.startWebsocket(ctx); err != nil {
		return nil, err
	}

	sub := subscriptionType(channel)
	if sub == "" {
		return nil, errors.Wrap(exception.ErrVenueUnsupported, channel)
	}
	if err := d.subscribeOnce(ctx, sub); err != nil {
		return nil, err
	}

	return d.observe(ctx, channel, sub, handler), nil
}

func subscriptionType(channel string) string {
	switch channel {
	case venue.ChannelOrders:
		return _subOrderUpdates
	case venue.ChannelPositions, venue.ChannelAccount:
		return _subWebData
	default:
		return ""
	}
}

func (d *Driver) startWebsocket(ctx context.Context) error {
	d.wsOnce.Do(func() {
		if err := d.wss.Start(ctx); err != nil {
			d.wsErr = errors.Wrap(err, "start wss")
		}
	})
	return d.wsErr
}

func (d *Driver) subscribeOnce(ctx context.Context, sub string) error {
	var subErr error
	d.subOnce[sub].Do(func() {
		appendIntoRegister := true
		subErr = d.wss.SendAndWait(ctx, ws.Sidecar{
			Sender: func(ctx context.Context, client *ws.WebSocket) error {
				payload := map[string]any{
					"method": "subscribe",
					"subscription": map[string]any{
						"type": sub,
						"user": d.cfg.Wallet,
					},
				}
				if err := client.WriteJSON(payload); err != nil {
					return errors.Wrap(err, "write subscribe payload").With("subscription", sub)
				}
				return nil
			},
			Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
				ack, ok := ws.ReadMessage[subscribeAck](m)
				if !ok || ack.Channel != "subscriptionResponse" {
					return false, nil
				}
				return ack.Data.Subscription.Type == sub, nil
			},
		}, appendIntoRegister)
	})
	return subErr
}

func (d *Driver) observe(ctx context.Context, channel, sub string, handler func(venue.StreamEvent)) (unsubscribe func()) {
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
				if !ok || envelope.Channel != sub {
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
		var updates []orderStatusUpdate
		if err := sonic.ConfigFastest.Unmarshal(raw, &updates); err != nil {
			return venue.StreamEvent{}, false
		}
		event.Orders = make([]venue.RawOrder, 0, len(updates))
		for _, update := range updates {
			event.Orders = append(event.Orders, rawOrder(update.Order, update.Status))
		}
	case venue.ChannelPositions:
		var push webDataPush
		if err := sonic.ConfigFastest.Unmarshal(raw, &push); err != nil {
			return venue.StreamEvent{}, false
		}
		event.Positions = positions(push.ClearinghouseState)
	case venue.ChannelAccount:
		var push webDataPush
		if err := sonic.ConfigFastest.Unmarshal(raw, &push); err != nil {
			return venue.StreamEvent{}, false
		}
		summary := accountSummary(push.ClearinghouseState)
		summary.UpnlSource = "ws"
		event.Account = &summary
	default:
		return venue.StreamEvent{}, false
	}
	return event, true
}
