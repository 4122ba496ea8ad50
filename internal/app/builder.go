package app

import (
	"context"
	"fmt"
	"time"

	"hedger/internal/config"
	"hedger/internal/engine"
	"hedger/internal/exitrules"
	"hedger/internal/gateway/broker"
	"hedger/internal/gateway/marketdata"
	"hedger/internal/gateway/predictor"
	"hedger/internal/intake"
	"hedger/internal/killswitch"
	"hedger/internal/logger"
	"hedger/internal/market"
	"hedger/internal/metrics"
	"hedger/internal/monitor"
	"hedger/internal/pkg/circuit"
	"hedger/internal/sequencer"
	"hedger/internal/store/audit"
	"hedger/internal/store/position"
	transport "hedger/internal/transport/http"

	"github.com/prometheus/client_golang/prometheus"
)

// Build wires the whole application from a validated config. Construction
// order follows the dependency chain: stores and gateways first, then the
// services that consume them.
func Build(cfg *config.Config) (*App, error) {
	session, err := market.NewSession(cfg.Session.Timezone, cfg.Session.Open, cfg.Session.Close)
	if err != nil {
		return nil, err
	}
	if err := session.LoadHolidays(cfg.Session.HolidaysFile); err != nil {
		return nil, err
	}

	kill := killswitch.New(cfg.Intake.KillSwitchFile)

	breakers := circuit.NewRegistry()
	brokerCB := newBreaker("broker", cfg.Breakers.Broker)
	marketCB := newBreaker("marketdata", cfg.Breakers.MarketData)
	predictorCB := newBreaker("predictor", cfg.Breakers.Predictor)
	breakers.Register(brokerCB)
	breakers.Register(marketCB)
	breakers.Register(predictorCB)
	prometheus.MustRegister(metrics.NewBreakerCollector(breakers))

	positions, err := position.NewStore(cfg.Store.PositionsPath)
	if err != nil {
		return nil, fmt.Errorf("opening position store: %w", err)
	}
	audits, err := audit.NewStore(cfg.Store.AuditPath)
	if err != nil {
		positions.Close()
		return nil, fmt.Errorf("opening audit store: %w", err)
	}

	mdREST := marketdata.NewRESTClient(cfg.MarketData.BaseURL, cfg.MarketData.APIKey,
		time.Duration(cfg.MarketData.TimeoutSeconds)*time.Second)
	var mdInner marketdata.Port = mdREST
	var ws *marketdata.WSUpdater
	if cfg.MarketData.WSURL != "" {
		ws = marketdata.NewWSUpdater(cfg.MarketData.WSURL, mdREST)
		mdInner = ws
	}
	quotes := marketdata.WithBreaker(mdInner, marketCB)

	var orderPort broker.Port
	if cfg.App.DryRun {
		paper := broker.NewPaperBroker()
		paper.QuoteFn = func(req broker.OrderRequest) float64 {
			price, err := quotes.GetLastPrice(context.Background(), marketdata.Option(req.Symbol, req.Strike, req.OptionType))
			if err != nil {
				logger.Warnf("paper broker: no quote for %s, filling at requested price: %v", req.Contract(), err)
				return req.Price
			}
			return price
		}
		orderPort = paper
		logger.Warnf("dry run: orders routed to the paper broker")
	} else {
		orderPort = broker.WithBreaker(
			broker.NewRESTClient(cfg.Broker.BaseURL, cfg.Broker.APIKey,
				time.Duration(cfg.Broker.TimeoutSeconds)*time.Second),
			brokerCB)
	}

	var model predictor.Port = predictor.Disabled{}
	if cfg.Predictor.Enabled {
		model = predictor.NewClient(cfg.Predictor.BaseURL,
			time.Duration(cfg.Predictor.TimeoutSeconds)*time.Second, predictorCB)
	}

	rules, err := exitrules.NewRegistry(exitrules.Profile{
		ProfitTargetPct: cfg.Exit.ProfitTargetPct,
		ProfitLockPct:   cfg.Exit.ProfitLockPct,
		TrailPct:        cfg.Exit.TrailPct,
		ModelThreshold:  cfg.Exit.ModelThreshold,
		ExitDayOffset:   cfg.Exit.ExitDayOffset,
	}, cfg.Exit.RulesFile)
	if err != nil {
		positions.Close()
		audits.Close()
		return nil, err
	}

	sizer := intake.NewSizer(cfg.Instrument, cfg.Hedge, quotes)
	dedup := intake.NewDedupCache(config.Duration(cfg.Intake.DedupWindow))
	admission := intake.NewService(cfg.Instrument, cfg.Intake.MaxLotsPerTrade, session, kill, dedup, sizer)

	seq := sequencer.New(cfg.Instrument.Symbol, orderPort, positions, audits,
		config.Duration(cfg.Broker.FillPollInterval), cfg.Broker.FillPollAttempts)

	validator := market.NewCandleValidator(config.Duration(cfg.Exit.MaxCandleAge),
		cfg.Instrument.MinIndex, cfg.Instrument.MaxIndex, session.IsOpen)
	breach := &engine.BreachChecker{Validator: validator, Margin: cfg.Exit.MinBreachMargin}
	eng := engine.New(cfg.Exit, cfg.Instrument, quotes, model, rules, session, positions, audits, breach)

	mon := monitor.New(cfg.Instrument.Symbol, eng, seq, positions, quotes, session,
		config.Duration(cfg.Exit.MonitorInterval), config.Duration(cfg.Exit.HourlyOffset))
	if ws != nil {
		mon.WithTicks(ws)
	}

	server := transport.NewServer(cfg.App.HTTPAddr, cfg.Intake.WebhookSecret,
		admission, seq, positions, audits, kill, breakers)

	return &App{
		cfg:       cfg,
		positions: positions,
		audits:    audits,
		kill:      kill,
		rules:     rules,
		ws:        ws,
		monitor:   mon,
		server:    server,
	}, nil
}

func newBreaker(name string, cfg config.BreakerConfig) *circuit.CircuitBreaker {
	return circuit.NewCircuitBreaker(name, cfg.FailureThreshold, cfg.SuccessThreshold,
		config.Duration(cfg.RecoveryTimeout))
}
