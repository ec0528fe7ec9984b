package app

import (
	"fmt"
	"strings"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/config/loader"
	"tradecore/internal/gateway/venue"
	"tradecore/internal/market"
	"tradecore/internal/order"
	"tradecore/internal/pkg/circuit"
	"tradecore/internal/position"
	"tradecore/internal/risk"
	"tradecore/internal/store/gormstore"
	tradehttp "tradecore/internal/transport/http"
	"tradecore/internal/validator"

	"github.com/shopspring/decimal"
)

func build(cfg *config.Config) (*App, error) {
	st, err := gormstore.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	policies, err := loader.NewPolicyLoader(cfg.Risk.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load risk policy: %w", err)
	}

	mkt := market.NewBinanceSource(cfg.Market)

	gw, paper, err := buildVenue(cfg.Venue)
	if err != nil {
		return nil, err
	}

	pm := position.NewManager(st)
	v := validator.New(policies.Current)
	om := order.NewManager(st, gw, mkt, v, pm, order.Config{
		VenueName:          cfg.Venue.Name,
		InitialEquity:      decimal.NewFromFloat(cfg.Account.InitialEquity),
		FeeRate:            decimal.NewFromFloat(cfg.Account.FeeRatePct),
		CallTimeout:        time.Duration(cfg.Venue.CallTimeoutSeconds) * time.Second,
		StatusPollInterval: time.Duration(cfg.Venue.StatusPollSeconds) * time.Second,
		ReconcileInterval:  time.Duration(cfg.Venue.ReconcileSeconds) * time.Second,
	})
	om.SetBreaker(circuit.NewBreaker(
		"venue:"+cfg.Venue.Name,
		cfg.Venue.BreakerThreshold,
		time.Duration(cfg.Venue.BreakerCooldownSeconds)*time.Second,
	))

	mon := risk.NewMonitor(st, policies.Current, om, pm, mkt,
		time.Duration(cfg.Risk.MonitorIntervalSeconds)*time.Second)
	om.SetKillSwitch(mon.Tripped)

	httpSrv, err := tradehttp.NewServer(cfg.App.HTTPAddr, &tradehttp.Router{
		Orders:  om,
		Monitor: mon,
		Store:   st,
		Policy:  policies.Current,
		Paper:   paper,
	})
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	return &App{
		cfg:      cfg,
		store:    st,
		policies: policies,
		orders:   om,
		monitor:  mon,
		httpSrv:  httpSrv,
	}, nil
}

func buildVenue(cfg config.VenueConfig) (venue.Gateway, *venue.PaperVenue, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "paper":
		paper := venue.NewPaperVenue()
		return paper, paper, nil
	default:
		return nil, nil, fmt.Errorf("unsupported venue: %q", cfg.Name)
	}
}
