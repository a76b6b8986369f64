package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/config"
	"github.com/avstrong/roomstay/internal/gateway/local"
	"github.com/avstrong/roomstay/internal/gateway/razorpay"
	"github.com/avstrong/roomstay/internal/idgen/random"
	"github.com/avstrong/roomstay/internal/logger"
	"github.com/avstrong/roomstay/internal/migration"
	"github.com/avstrong/roomstay/internal/notify/amqp"
	"github.com/avstrong/roomstay/internal/notify/logsink"
	"github.com/avstrong/roomstay/internal/pricing"
	"github.com/avstrong/roomstay/internal/scheduler"
	"github.com/avstrong/roomstay/internal/storage/memory"
	"github.com/avstrong/roomstay/internal/storage/sqlstore"
	"github.com/avstrong/roomstay/internal/transport/web"
)

const tracerName = "github.com/avstrong/roomstay"

type storage interface {
	booking.Storage
	SaveListings(ctx context.Context, listings []*booking.Listing) error
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStorage(conf *config.Config, l *logger.Logger) (storage, io.Closer, error) {
	switch conf.Storage.Driver {
	case config.StorageSQLite, config.StoragePostgres:
		db, err := sqlstore.Open(sqlstore.Config{
			L:      l,
			Driver: conf.Storage.Driver,
			DSN:    conf.Storage.DatabaseURL,
		})
		if err != nil {
			return nil, nil, err
		}

		return db, db, nil
	default:
		return memory.New(memory.Config{L: l}), nopCloser{}, nil
	}
}

func newGateway(conf *config.Config, l *logger.Logger) booking.Gateway {
	if conf.Gateway.Driver == config.GatewayRazorpay {
		return razorpay.New(razorpay.Conf{
			L:         l,
			BaseURL:   conf.Gateway.BaseURL,
			KeyID:     conf.Gateway.KeyID,
			KeySecret: conf.Gateway.KeySecret,
		})
	}

	l.LogWarnf("Local payment gateway in use, payments are simulated")

	return local.New(conf.Gateway.KeySecret, nil)
}

func newPublisher(conf *config.Config, l *logger.Logger) (booking.Publisher, io.Closer, error) {
	if conf.AMQP.URL == "" {
		return logsink.New(l), nopCloser{}, nil
	}

	p, err := amqp.Dial(amqp.Conf{L: l, URL: conf.AMQP.URL, Exchange: conf.AMQP.Exchange})
	if err != nil {
		return nil, nil, err
	}

	return p, p, nil
}

func Migrate(conf *config.Config, l *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closer, err := openStorage(conf, l)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeQuietly(l, "storage", closer)

	if err := migration.Up(ctx, l, st); err != nil {
		return fmt.Errorf("up migration: %w", err)
	}

	l.LogInfo("Migration has been applied to %v storage", conf.Storage.Driver)

	return nil
}

func Run(conf *config.Config, l *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	st, storageCloser, err := openStorage(conf, l)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeQuietly(l, "storage", storageCloser)

	if err := migration.Up(ctx, l, st); err != nil {
		return fmt.Errorf("up migration: %w", err)
	}

	l.LogInfo("Migration has been applied")

	publisher, publisherCloser, err := newPublisher(conf, l)
	if err != nil {
		return fmt.Errorf("init event publisher: %w", err)
	}
	defer closeQuietly(l, "event publisher", publisherCloser)

	tracer := otel.Tracer(tracerName)

	bookManager := booking.New(booking.Conf{
		L:         l,
		Storage:   st,
		IDGen:     random.New(),
		Pricer:    pricing.New(conf.Pricing.Rates()),
		Gateway:   newGateway(conf, l),
		Publisher: publisher,
		Tracer:    tracer,
		HoldTTL:   conf.Payment.HoldTTL,
		Currency:  conf.Payment.Currency,
	})

	if conf.ExpirySweepInterval > 0 {
		go scheduler.New(bookManager, conf.ExpirySweepInterval, l).Start(ctx)
	}

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      l.StdLogger(),
		Tracer:            tracer,
		Host:              conf.HTTP.Host,
		Port:              conf.HTTP.Port,
		ReadHeaderTimeout: conf.HTTP.ReadHeaderTimeout,
		LivenessEndpoint:  conf.HTTP.LivenessEndpoint,
	}

	srv, err := web.New(ctx, webConf, bookManager)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:gomnd
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v...", webConf.Host, webConf.Port)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()
	}

	l.LogInfo("Application stopped gracefully")

	return nil
}

func closeQuietly(l *logger.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		l.LogErrorf("Could not close %v: %v", what, err.Error())
	}
}
