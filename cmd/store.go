package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/outboundlabs/leadflow/internal/config"
	"github.com/outboundlabs/leadflow/internal/outreach"
	"github.com/outboundlabs/leadflow/internal/pipeline"
	"github.com/outboundlabs/leadflow/internal/runlock"
	"github.com/outboundlabs/leadflow/internal/scorer"
	"github.com/outboundlabs/leadflow/internal/source"
	"github.com/outboundlabs/leadflow/internal/store"
	"github.com/outboundlabs/leadflow/pkg/instantly"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadflow.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func acquireLock() (*runlock.Lock, error) {
	stale := time.Duration(cfg.Lock.StaleMinutes) * time.Minute
	return runlock.Acquire(cfg.Lock.Path, stale)
}

func initOutreach() *outreach.Outreach {
	client := instantly.NewClient(cfg.Instantly.Key, instantly.WithBaseURL(cfg.Instantly.BaseURL))
	return outreach.New(client, outreach.Config{
		CampaignName: cfg.Instantly.CampaignName,
		SendDelay:    time.Duration(cfg.Outreach.SendDelayMs) * time.Millisecond,
	})
}

func sourceConfig(sc config.SourcingConfig) source.Config {
	cities := make([]source.City, 0, len(sc.Cities))
	for _, c := range sc.Cities {
		cities = append(cities, source.City{Name: c.Name, Country: c.Country})
	}
	return source.Config{
		Cities:           cities,
		Queries:          sc.Queries,
		QueriesPerCity:   sc.QueriesPerCity,
		PerLocationLimit: sc.PerLocationLimit,
		CallBudget:       sc.CallBudget,
		ExcludeKeywords:  sc.ExcludeKeywords,
		Delay:            time.Duration(sc.DelayMillis) * time.Millisecond,
	}
}

func pipelineConfig(sequences []instantly.Sequence) pipeline.Config {
	return pipeline.Config{
		DailyTarget: cfg.Sourcing.DailyTarget,
		DailyCap:    cfg.Outreach.DailyCap,
		Scoring: scorer.Config{
			TargetIndustries:   cfg.Scoring.TargetIndustries,
			CompetitorKeywords: cfg.Scoring.CompetitorKeywords,
		},
		Sequences: sequences,
	}
}
