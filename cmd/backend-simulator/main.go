package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	shttp "github.com/radieske/betref-client/internal/backend-simulator/http"
	"github.com/radieske/betref-client/internal/backend-simulator/state"
	"github.com/radieske/betref-client/internal/shared/config"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/internal/shared/metrics"
)

func main() {
	os.Setenv("SERVICE_NAME", "backend-simulator")
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New("backend-simulator", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "backend-simulator"), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SimulatorDrawInterval <= 0 {
		cfg.SimulatorDrawInterval = time.Hour
	}

	// Estado em memória com o admin semeado
	st, err := state.New(state.Config{
		AdminUser:     cfg.SimulatorAdminUser,
		AdminPassword: cfg.SimulatorAdminPassword,
		DrawInterval:  cfg.SimulatorDrawInterval,
	})
	if err != nil {
		log.Fatal("seed state", zap.Error(err))
	}

	draws := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_vip_draws_total",
		Help: "sorteios VIP realizados com vencedor",
	})
	prometheus.MustRegister(draws)

	api := shttp.NewServer(log, st, shttp.NewTokens(cfg.SimulatorJWTSecret, 24*time.Hour), prometheus.DefaultRegisterer)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8000
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, prometheus.DefaultGatherer, nil)
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Sorteio VIP periódico
	go func() {
		t := time.NewTicker(cfg.SimulatorDrawInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r, ok := st.Draw()
				if !ok {
					log.Debug("draw skipped, no participants")
					continue
				}
				draws.Inc()
				log.Info("vip draw", zap.String("winner", r.Winner), zap.Int("participants", r.Participants), zap.String("prize", r.Prize.String()))
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
