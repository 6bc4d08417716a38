package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/flight-seat-reservation/internal/booking"
	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/handler"
	"github.com/iliyamo/flight-seat-reservation/internal/hold"
	"github.com/iliyamo/flight-seat-reservation/internal/lock"
	"github.com/iliyamo/flight-seat-reservation/internal/logger"
	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
	"github.com/iliyamo/flight-seat-reservation/internal/pricing"
	"github.com/iliyamo/flight-seat-reservation/internal/queue"
	"github.com/iliyamo/flight-seat-reservation/internal/router"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  logger.Format(cfg.LogFormat),
		Service: "flight-seat-reservation",
	})
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	clock := clockwork.NewRealClock()

	st, err := openStore(ctx, cfg, clock, log)
	if err != nil {
		return err
	}
	defer st.close()

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		return err
	}
	defer rdb.Close()
	st.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

	prices := pricing.NewEngine(st.store, pricing.NewRedisCache(config.LoadPricingConfig(), rdb), clock, log)

	holdCfg := config.LoadHoldConfig()
	holds := hold.NewManager(st.store, lock.NewRedisLocker(rdb), hold.NewRedisRecords(rdb, holdCfg.SessionPrefix),
		prices, clock, holdCfg, log)

	brokerCfg := config.LoadBrokerConfig()
	var events queue.Publisher = queue.NopPublisher{}
	if brokerCfg.Enabled {
		events = queue.NewAMQPPublisher(brokerCfg.URL, brokerCfg.PublishTimeout, log)
	}
	bookings := booking.NewCoordinator(st.store, holds, prices, events, clock, config.LoadBookingConfig(), log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		holds.RunSweeper(ctx)
	}()
	if brokerCfg.Enabled && brokerCfg.ConsumeEnabled {
		consumer := queue.NewConsumer(brokerCfg.URL, brokerCfg.LogDir, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", "err", err)
			}
		}()
	}

	e := newEcho(log)
	router.RegisterRoutes(e, handler.Ready(st.checks))
	flights := handler.NewFlightHandler(st.store, prices, log)
	bookingHandler := handler.NewBookingHandler(bookings, log)
	router.RegisterPublic(e, flights)
	router.RegisterCustomer(e, handler.NewHoldHandler(holds, log), bookingHandler, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterAdmin(e, flights, bookingHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.Store)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := e.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", "err", serr)
	}
	wg.Wait()
	return err
}

// newEcho builds the Echo instance with the validator, panic recovery
// and request logging through slog.
func newEcho(log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	}))
	return e
}
