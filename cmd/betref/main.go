package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/cli"
	"github.com/radieske/betref-client/internal/client/admin"
	"github.com/radieske/betref-client/internal/client/store"
	"github.com/radieske/betref-client/internal/shared/config"
	"github.com/radieske/betref-client/internal/shared/kafka"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/internal/shared/metrics"
)

func main() {
	os.Exit(run())
}

// run existe para os defers rodarem antes do os.Exit
func run() int {
	cfg := config.Load()

	log, err := logger.New("betref", cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return cli.ExitError
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Error("open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
		fmt.Fprintln(os.Stderr, "No se pudo abrir el almacenamiento local:", err)
		return cli.ExitError
	}
	defer st.Close()

	// Métricas só quando METRICS_PORT estiver definido (watch de longa duração)
	var cm *metrics.ClientMetrics
	if cfg.MetricsPort != "" {
		reg := prometheus.NewRegistry()
		cm = metrics.NewClientMetrics(reg)
		srv := metrics.StartMetricsServer(cfg.MetricsPort, reg, st.Ping)
		defer srv.Close()
		log.Info("metrics/health listening", zap.String("addr", srv.Addr))
	}

	// Auditoria das decisões do painel no Kafka
	var audit admin.Publisher = admin.NopPublisher{}
	if cfg.KafkaBrokers != "" {
		pub := admin.NewKafkaPublisher(kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicAdminDecisions))
		defer pub.Close()
		audit = pub
		log.Info("admin audit enabled", zap.String("topic", cfg.TopicAdminDecisions))
	}

	app := cli.New(cli.Options{
		Config:  cfg,
		Logger:  log,
		Store:   st,
		In:      os.Stdin,
		Out:     os.Stdout,
		Color:   true,
		Metrics: cm,
		Audit:   audit,
	})
	return app.Run(ctx, os.Args[1:])
}
