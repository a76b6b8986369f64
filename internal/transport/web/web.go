package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/logger"
)

var (
	ErrPanic             = errors.New("handler panicked")
	ErrMissingDependency = errors.New("logger and booking manager are required")
)

type Server struct {
	srv      *http.Server
	router   *httprouter.Router
	l        *logger.Logger
	conf     Conf
	bManager *booking.Manager
	tracer   trace.Tracer
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Tracer            trace.Tracer
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string
}

func New(ctx context.Context, conf Conf, bookingManager *booking.Manager) (*Server, error) {
	if conf.L == nil || bookingManager == nil {
		return nil, ErrMissingDependency
	}

	if conf.Tracer == nil {
		conf.Tracer = noop.NewTracerProvider().Tracer("")
	}

	router := httprouter.New()
	router.RedirectTrailingSlash = false

	//nolint:exhaustruct
	srv := &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		ErrorLog:          conf.ServerLogger,
		Handler:           router,
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	server := &Server{
		srv:      srv,
		router:   router,
		l:        conf.L,
		conf:     conf,
		bManager: bookingManager,
		tracer:   conf.Tracer,
	}

	router.NotFound = http.HandlerFunc(server.notFoundHandler)
	router.MethodNotAllowed = http.HandlerFunc(server.methodNotAllowedHandler)

	server.addRoutes(router)

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}
