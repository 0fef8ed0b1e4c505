package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/provider"
	"github.com/bratushka/cypher/pkg/provider/bolt"
	"github.com/bratushka/cypher/pkg/provider/redisgraph"
)

var (
	metricsRegistry = prometheus.NewRegistry()
	metricsOnce     sync.Once
	queryMetrics    *provider.Metrics
)

// openProviderFunc is swapped in tests.
var openProviderFunc = openProvider

// openProvider returns an instrumented provider for the named database
// together with its descriptor.
func openProvider(cfg *config.Config, name string) (provider.Provider, config.Database, error) {
	db, err := cfg.Database(name)
	if err != nil {
		return nil, config.Database{}, err
	}

	var p provider.Provider
	switch db.Engine() {
	case config.RedisGraph:
		p, err = redisgraph.New(db)
	default:
		p, err = bolt.New(db)
	}
	if err != nil {
		return nil, config.Database{}, fmt.Errorf("error creating provider: %w", err)
	}
	logDebug("opened ", db.Engine(), " provider for ", db.URL)
	return provider.Instrument(p, getMetrics()), db, nil
}

func getMetrics() *provider.Metrics {
	metricsOnce.Do(func() {
		m, err := provider.NewMetrics(metricsRegistry)
		if err != nil {
			logDebug("metrics disabled: ", err)
			return
		}
		queryMetrics = m
	})
	return queryMetrics
}

// serveMetrics exposes the query metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Error serving metrics: %v\n", err)
		}
	}()
}
