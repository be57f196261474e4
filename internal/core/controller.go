package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/adapter/enum"
	"main/internal/gateway"
	"main/internal/journal"
	"main/internal/order"
	"main/pkg/exception"
)

// Pair binds one venue's gateway with its order manager.
type Pair struct {
	Gateway   *gateway.Gateway
	Manager   *order.Usecase
	Streaming bool
}

// Controller owns which venue pair is active and performs the switch-over.
// The mutex is held only for the duration of a switch, never in steady
// state; reads of the active pair go through an atomic pointer.
type Controller struct {
	mu      sync.Mutex
	pairs   map[enum.Venue]Pair
	active  atomic.Pointer[activeState]
	inSwap  atomic.Bool
	journal *journal.Journal

	runnerMu sync.Mutex
	runners  map[enum.Venue]context.CancelFunc
}

type activeState struct {
	venue enum.Venue
	pair  Pair
}

func New(pairs map[enum.Venue]Pair, initial enum.Venue, j *journal.Journal) (*Controller, error) {
	pair, ok := pairs[initial]
	if !ok {
		return nil, errors.Wrap(exception.ErrVenueNotConfigured, initial.String())
	}
	c := &Controller{
		pairs:   pairs,
		journal: j,
		runners: make(map[enum.Venue]context.CancelFunc),
	}
	c.active.Store(&activeState{venue: initial, pair: pair})
	return c, nil
}

// Active returns the live venue with its pair.
func (c *Controller) Active() (enum.Venue, Pair) {
	state := c.active.Load()
	return state.venue, state.pair
}

// Manager returns the active order manager; the transport layer asks for it
// per request instead of holding a binding across switches.
func (c *Controller) Manager() *order.Usecase {
	return c.active.Load().pair.Manager
}

// SwitchInProgress gates mutating transport requests during a switch.
func (c *Controller) SwitchInProgress() bool {
	return c.inSwap.Load()
}

// Activate brings the current venue up: configs, manager state, streams.
func (c *Controller) Activate(ctx context.Context) error {
	venueID, pair := c.Active()
	if err := c.bringUp(ctx, venueID, pair); err != nil {
		return err
	}
	return nil
}

// SwitchVenue atomically replaces the active venue. On any failure the old
// venue is restored, its streams restarted best-effort, and the error is
// surfaced. Switches never overlap.
func (c *Controller) SwitchVenue(ctx context.Context, target enum.Venue) (enum.Venue, error) {
	if !c.mu.TryLock() {
		return c.active.Load().venue, exception.ErrVenueSwitchBusy
	}
	defer c.mu.Unlock()

	oldState := c.active.Load()
	if target == oldState.venue {
		return oldState.venue, nil
	}

	newPair, ok := c.pairs[target]
	if !ok {
		return oldState.venue, errors.Wrap(exception.ErrVenueNotConfigured, target.String())
	}

	c.inSwap.Store(true)
	defer c.inSwap.Store(false)

	logs.Infof("switching venue %s -> %s", oldState.venue, target)

	c.stopRunner(oldState.venue)
	oldState.pair.Gateway.StopStreams()
	oldState.pair.Manager.ClearRuntimeState()
	oldState.pair.Gateway.ClearRuntimeState()

	if err := c.bringUp(ctx, target, newPair); err != nil {
		c.restore(ctx, oldState)
		c.recordSwitch(oldState.venue, target, err)
		return oldState.venue, errors.Wrap(exception.ErrVenueSwitchFailed, err.Error())
	}

	c.active.Store(&activeState{venue: target, pair: newPair})
	c.recordSwitch(oldState.venue, target, nil)
	logs.Infof("venue switch complete, active=%s", target)
	return target, nil
}

func (c *Controller) bringUp(ctx context.Context, venueID enum.Venue, pair Pair) error {
	if err := pair.Gateway.LoadConfigs(ctx); err != nil {
		return err
	}
	if err := pair.Manager.Refresh(ctx); err != nil {
		return err
	}
	if pair.Streaming {
		if err := pair.Gateway.StartStreams(ctx); err != nil {
			return err
		}
	}
	c.startRunner(venueID, pair)
	return nil
}

// restore puts the old venue back after a failed switch, best-effort.
func (c *Controller) restore(ctx context.Context, oldState *activeState) {
	if err := c.bringUp(ctx, oldState.venue, oldState.pair); err != nil {
		logs.Errorf("restore %s after failed switch: %v", oldState.venue, err)
	}
	c.active.Store(oldState)
}

// Shutdown stops the active venue's streams and runners.
func (c *Controller) Shutdown() {
	venueID, pair := c.Active()
	c.stopRunner(venueID)
	pair.Gateway.StopStreams()
}

func (c *Controller) startRunner(venueID enum.Venue, pair Pair) {
	ctx, cancel := context.WithCancel(context.Background())
	c.runnerMu.Lock()
	c.runners[venueID] = cancel
	c.runnerMu.Unlock()
	go pair.Manager.Run(ctx)
}

func (c *Controller) stopRunner(venueID enum.Venue) {
	c.runnerMu.Lock()
	cancel := c.runners[venueID]
	delete(c.runners, venueID)
	c.runnerMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) recordSwitch(from, to enum.Venue, switchErr error) {
	rec := journal.SwitchRecord{
		CreatedAt: time.Now(),
		From:      from.String(),
		To:        to.String(),
		Succeeded: switchErr == nil,
	}
	if switchErr != nil {
		rec.Error = switchErr.Error()
	}
	c.journal.RecordSwitch(rec)
}
