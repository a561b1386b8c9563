// Command poolclient drives pooled connections against the echo server
// and exposes the pool's stats and health over HTTP. It wires together
// the pool, the TCP dialer, the health monitor and snapshot storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"netpool/pkg/api"
	"netpool/pkg/config"
	"netpool/pkg/health"
	"netpool/pkg/logger"
	"netpool/pkg/pool"
	"netpool/pkg/storage"
	"netpool/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "Config file path (optional)")
	addr := flag.String("addr", "", "Echo server address (overrides config)")
	workers := flag.Int("workers", 4, "Concurrent workers")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Address = *addr
	}

	logger.Init(logger.LogLevel(cfg.Logging.Level), cfg.Logging.Format)
	log := logger.Get()
	log.InfoWith("pool client starting", "config", cfg.String())

	poolCfg, err := cfg.PoolSettings()
	if err != nil {
		log.ErrorWithErr("invalid pool settings", err)
		os.Exit(1)
	}

	dialer := transport.NewTCPDialer(cfg.Address, cfg.DialTimeout())
	connPool, err := pool.New(poolCfg, pool.WithFactory[net.Conn](dialer))
	if err != nil {
		log.ErrorWithErr("creating pool failed", err)
		os.Exit(1)
	}
	defer connPool.Close()

	monitor := health.NewMonitor(connPool)
	monitor.SetComponentStatus("pool", health.StatusHealthy, "pool created")

	var store storage.Store
	if cfg.Database.Type != "" {
		store, err = storage.NewStore(cfg.Database)
		if err != nil {
			log.ErrorWithErr("stats persistence unavailable", err)
			monitor.SetComponentStatus("storage", health.StatusDegraded, err.Error())
		} else {
			defer store.Close()
			monitor.SetComponentStatus("storage", health.StatusHealthy, "snapshots enabled")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.API.Enabled {
		server := api.NewServer(monitor, connPool, connPool, store)
		go func() {
			if err := server.Run(fmt.Sprintf(":%d", cfg.API.Port)); err != nil {
				log.ErrorWithErr("stats api stopped", err)
			}
		}()
	}

	if store != nil {
		go persistSnapshots(ctx, connPool, store, log)
	}

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(ctx, id, connPool, log)
		}(i)
	}

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()

	stats := connPool.Stats()
	log.InfoWith("final pool stats",
		"acquires", stats.Acquires,
		"hits", stats.Hits,
		"created", stats.Created,
		"expired", stats.Expired,
	)
}

// runWorker repeatedly leases a connection, echoes one payload through
// it and releases the lease
func runWorker(ctx context.Context, id int, connPool *pool.Pool[net.Conn], log *logger.Logger) {
	payload := []byte(fmt.Sprintf("ping from worker %d\n", id))
	buf := make([]byte, len(payload))

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		lease, err := connPool.Get(ctx)
		if err != nil {
			log.WarnWith("acquire failed", "worker", id, "error", err.Error())
			continue
		}

		conn := lease.Resource()
		if err := echoOnce(conn, payload, buf); err != nil {
			log.WarnWith("echo failed", "worker", id, "error", err.Error())
			// A broken connection is useless to every other holder
			lease.Remove()
		}
		if err := lease.Release(); err != nil {
			log.ErrorWithErr("release failed", err, "worker", id)
		}
	}
}

func echoOnce(conn net.Conn, payload, buf []byte) error {
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(payload); err != nil {
		return err
	}
	if _, err := conn.Read(buf); err != nil {
		return err
	}
	return nil
}

// persistSnapshots samples the pool counters periodically
func persistSnapshots(ctx context.Context, provider api.StatsProvider, store storage.Store, log *logger.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Save(provider.Stats()); err != nil {
				log.ErrorWithErr("saving pool snapshot failed", err)
			}
		}
	}
}
