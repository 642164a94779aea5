package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/alucardeht/birdwatch-mcp/internal/capabilities"
	"github.com/alucardeht/birdwatch-mcp/internal/config"
	"github.com/alucardeht/birdwatch-mcp/internal/logger"
	"github.com/alucardeht/birdwatch-mcp/internal/sentiment"
	"github.com/alucardeht/birdwatch-mcp/internal/tools"
	"github.com/alucardeht/birdwatch-mcp/internal/twitter"
)

var log = logger.ForComponent("main")

// app is the wired capability set plus whatever must be released on exit.
type app struct {
	dispatcher *tools.Dispatcher
	closers    []func() error
}

// newApp builds the registry and dispatcher from cfg. Without a bearer token
// the API-backed capabilities are still declared but have no client, which
// is only acceptable when requireToken is false (listing tools).
func newApp(cfg *config.Config, requireToken bool) (*app, error) {
	a := &app{}
	deps := capabilities.Deps{
		Analyzer: sentiment.Default(),
		Started:  time.Now(),
	}

	if err := cfg.RequireToken(); err != nil {
		if requireToken {
			return nil, err
		}
	} else {
		client, err := twitter.NewHTTPClient(twitter.Options{
			BaseURL:     cfg.APIBaseURL,
			BearerToken: cfg.BearerToken,
			Timeout:     cfg.RequestTimeout,
			Circuit:     cfg.Circuit,
		})
		if err != nil {
			return nil, err
		}
		deps.Client = client
		deps.Circuit = client

		if cfg.CacheEnabled() {
			if cached, closer, err := openCache(cfg, client); err != nil {
				log.Warn("user cache disabled", "path", cfg.CachePath, "error", err)
			} else {
				deps.Client = cached
				deps.Cache = cached
				a.closers = append(a.closers, closer)
			}
		}
	}

	selected, err := tools.Select(capabilities.All(deps), cfg.EnabledTools)
	if err != nil {
		a.Close()
		return nil, err
	}
	if len(selected) == 0 {
		a.Close()
		return nil, fmt.Errorf("no capabilities match enabled_tools %v", cfg.EnabledTools)
	}

	registry, err := tools.NewRegistry(selected...)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.dispatcher = tools.NewDispatcher(registry, tools.WithTimeout(cfg.InvocationTimeout))
	return a, nil
}

func openCache(cfg *config.Config, client twitter.Client) (*twitter.CachedClient, func() error, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}
	cache, err := twitter.OpenUserCache(cfg.CachePath, cfg.UserCacheTTL)
	if err != nil {
		return nil, nil, err
	}
	return twitter.NewCachedClient(client, cache), cache.Close, nil
}

func (a *app) Close() error {
	var errs []error
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
