package ops

import (
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"main/internal/adapter/enum"
	"main/internal/gateway"
	"main/internal/order"
	"main/internal/risk"
)

// FileConfig mirrors the JSON config layout. Durations are seconds.
type FileConfig struct {
	ActiveVenue string                 `json:"activeVenue"`
	Venues      map[string]VenueConfig `json:"venues"`
	Risk        RiskConfig             `json:"risk"`
	Journal     JournalConfig          `json:"journal"`
	Profile     ProfileConfig          `json:"profile"`
}

// VenueConfig describes one venue's credentials and consistency knobs.
type VenueConfig struct {
	RestURL   string `json:"restUrl"`
	WsURL     string `json:"wsUrl"`
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
	// Passphrase is required by some venues' signing schemes.
	Passphrase string `json:"passphrase"`
	Wallet     string `json:"wallet"`
	Streaming  *bool  `json:"streaming"`

	ReconcileIntervalSec int `json:"reconcileIntervalSec"`
	ReconcileMinGapSec   int `json:"reconcileMinGapSec"`
	StalenessWindowSec   int `json:"stalenessWindowSec"`
	OrderTimeoutSec      int `json:"orderTimeoutSec"`
	EmptyResultGraceSec  int `json:"emptyResultGraceSec"`
	AccountRefreshSec    int `json:"accountRefreshSec"`
	RetryAttempts        int `json:"retryAttempts"`
}

// RiskConfig is the account-level sizing policy.
type RiskConfig struct {
	Caps                  risk.Caps `json:"caps"`
	SlippageFactor        float64   `json:"slippageFactor"`
	FeeBufferPct          float64   `json:"feeBufferPct"`
	EnrichedDiscretionary bool      `json:"enrichedDiscretionary"`
}

// JournalConfig enables the optional audit journal.
type JournalConfig struct {
	DSN string `json:"dsn"`
}

// ProfileConfig enables continuous profiling.
type ProfileConfig struct {
	ServerAddress string `json:"serverAddress"`
}

// VenueSpec is one venue's resolved runtime configuration.
type VenueSpec struct {
	Venue      enum.Venue
	RestURL    string
	WsURL      string
	APIKey     string
	APISecret  string
	Passphrase string
	Wallet     string
	Gateway    gateway.Config
	Streaming  bool
}

// Loaded is the resolved configuration ready for wiring.
type Loaded struct {
	ActiveVenue enum.Venue
	Venues      map[enum.Venue]VenueSpec
	Order       order.Config
	JournalDSN  string
	Profile     ProfileConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := sonic.ConfigFastest.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, fmt.Errorf("parse config: %w", err)
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	if len(cfg.Venues) == 0 {
		return Loaded{}, fmt.Errorf("config: no venues defined")
	}

	venues := make(map[enum.Venue]VenueSpec, len(cfg.Venues))
	for name, vc := range cfg.Venues {
		venueID, ok := enum.ParseVenue(name)
		if !ok {
			return Loaded{}, fmt.Errorf("config: unknown venue %q", name)
		}
		spec, err := resolveVenue(venueID, vc)
		if err != nil {
			return Loaded{}, err
		}
		venues[venueID] = spec
	}

	active, ok := enum.ParseVenue(cfg.ActiveVenue)
	if !ok {
		return Loaded{}, fmt.Errorf("config: unknown active venue %q", cfg.ActiveVenue)
	}
	if _, ok := venues[active]; !ok {
		return Loaded{}, fmt.Errorf("config: active venue %q has no venue entry", cfg.ActiveVenue)
	}

	if err := validateRisk(cfg.Risk); err != nil {
		return Loaded{}, err
	}

	return Loaded{
		ActiveVenue: active,
		Venues:      venues,
		Order: order.Config{
			RiskCaps:              cfg.Risk.Caps,
			SlippageFactor:        cfg.Risk.SlippageFactor,
			FeeBufferPct:          cfg.Risk.FeeBufferPct,
			EnrichedDiscretionary: cfg.Risk.EnrichedDiscretionary,
		},
		JournalDSN: cfg.Journal.DSN,
		Profile:    cfg.Profile,
	}, nil
}

func resolveVenue(venueID enum.Venue, vc VenueConfig) (VenueSpec, error) {
	secs := []struct {
		name  string
		value int
	}{
		{"reconcileIntervalSec", vc.ReconcileIntervalSec},
		{"reconcileMinGapSec", vc.ReconcileMinGapSec},
		{"stalenessWindowSec", vc.StalenessWindowSec},
		{"orderTimeoutSec", vc.OrderTimeoutSec},
		{"emptyResultGraceSec", vc.EmptyResultGraceSec},
		{"accountRefreshSec", vc.AccountRefreshSec},
		{"retryAttempts", vc.RetryAttempts},
	}
	for _, s := range secs {
		if s.value < 0 {
			return VenueSpec{}, fmt.Errorf("config: venue %s: %s must not be negative", venueID, s.name)
		}
	}

	streaming := true
	if vc.Streaming != nil {
		streaming = *vc.Streaming
	}

	return VenueSpec{
		Venue:      venueID,
		RestURL:    vc.RestURL,
		WsURL:      vc.WsURL,
		APIKey:     vc.APIKey,
		APISecret:  vc.APISecret,
		Passphrase: vc.Passphrase,
		Wallet:     vc.Wallet,
		Streaming:  streaming,
		Gateway: gateway.Config{
			ReconcileInterval: time.Duration(vc.ReconcileIntervalSec) * time.Second,
			ReconcileMinGap:   time.Duration(vc.ReconcileMinGapSec) * time.Second,
			StalenessWindow:   time.Duration(vc.StalenessWindowSec) * time.Second,
			OrderTimeout:      time.Duration(vc.OrderTimeoutSec) * time.Second,
			EmptyResultGrace:  time.Duration(vc.EmptyResultGraceSec) * time.Second,
			AccountRefresh:    time.Duration(vc.AccountRefreshSec) * time.Second,
			RetryAttempts:     vc.RetryAttempts,
			Streaming:         streaming,
		},
	}, nil
}

func validateRisk(rc RiskConfig) error {
	if rc.SlippageFactor < 0 {
		return fmt.Errorf("config: slippageFactor must not be negative")
	}
	if rc.FeeBufferPct < 0 || rc.FeeBufferPct >= 100 {
		return fmt.Errorf("config: feeBufferPct must be in [0, 100)")
	}
	for _, limit := range []struct {
		name  string
		value float64
	}{
		{"perTradePct", rc.Caps.PerTradePct},
		{"dailyLossPct", rc.Caps.DailyLossPct},
		{"openRiskPct", rc.Caps.OpenRiskPct},
	} {
		if limit.value < 0 {
			return fmt.Errorf("config: risk cap %s must not be negative", limit.name)
		}
	}
	return nil
}
