package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/adapter/enum"
	"main/internal/core"
	"main/internal/gateway"
	"main/internal/journal"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/order"
	"main/internal/venue"
	"main/internal/venue/bitget"
	"main/internal/venue/hyper"
	"main/pkg/exception"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if loaded.Profile.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trading/assistant",
			ServerAddress:   loaded.Profile.ServerAddress,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	j, err := journal.Open(loaded.JournalDSN)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer func() {
		_ = j.Close()
	}()

	client := &http.Client{Timeout: 15 * time.Second}
	pairs := make(map[enum.Venue]core.Pair, len(loaded.Venues))
	for venueID, spec := range loaded.Venues {
		driver, err := buildDriver(ctx, spec, client)
		if err != nil {
			log.Fatalf("build %s driver: %v", venueID, err)
		}
		cfg := spec.Gateway
		cfg.OnReconcile = func(v enum.Venue, reason enum.ReconcileReason) {
			j.RecordReconcile(journal.ReconcileRecord{Venue: v.String(), Reason: reason.String()})
		}
		gw := gateway.New(driver, cfg, obs.NewCounters())
		pairs[venueID] = core.Pair{
			Gateway:   gw,
			Manager:   order.New(gw, j, loaded.Order),
			Streaming: spec.Streaming,
		}
	}

	controller, err := core.New(pairs, loaded.ActiveVenue, j)
	if err != nil {
		log.Fatalf("build controller: %v", err)
	}
	if err := controller.Activate(ctx); err != nil {
		log.Fatalf("activate %s: %v", loaded.ActiveVenue, err)
	}

	logs.Infof("assistant running, active venue %s", loaded.ActiveVenue)

	select {
	case <-ctx.Done():
	case <-sys.Shutdown():
	}

	controller.Shutdown()
	logs.Info("assistant stopped")
}

func buildDriver(ctx context.Context, spec ops.VenueSpec, client *http.Client) (venue.Driver, error) {
	switch spec.Venue {
	case enum.VenueHyper:
		return hyper.New(ctx, hyper.Config{
			RestURL:   spec.RestURL,
			WsURL:     spec.WsURL,
			Wallet:    spec.Wallet,
			APISecret: spec.APISecret,
		}, client), nil
	case enum.VenueBitget:
		return bitget.New(ctx, bitget.Config{
			RestURL:    spec.RestURL,
			WsURL:      spec.WsURL,
			APIKey:     spec.APIKey,
			APISecret:  spec.APISecret,
			Passphrase: spec.Passphrase,
		}, client), nil
	default:
		return nil, errors.Wrap(exception.ErrVenueUnsupported, spec.Venue.String())
	}
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
