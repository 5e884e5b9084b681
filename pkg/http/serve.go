package xhttp

import (
	"slices"
	"time"

	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

type Server = fasthttp.Server

// ServerOption carries the fasthttp tunables this module cares about.
// Anything not listed keeps the fasthttp default.
type ServerOption struct {
	Handler RequestHandler
	Name    string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Idle keepalive connections are closed after this to stay clear of
	// the open-files limit.
	IdleTimeout time.Duration

	// Per-connection buffers. ReadBufferSize also caps the header size.
	ReadBufferSize  int
	WriteBufferSize int

	MaxRequestBodySize int
	Concurrency        int
	MaxConnsPerIP      int

	TCPKeepalive       bool
	TCPKeepalivePeriod time.Duration

	ErrorHandler func(ctx *RequestCtx, err error)
}

var DefaultServerOption = ServerOption{
	Handler: NotFoundHandler,

	ReadTimeout:  2500 * time.Millisecond,
	WriteTimeout: 2500 * time.Millisecond,
	IdleTimeout:  10 * time.Second,

	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,

	MaxRequestBodySize: 4 * 1024 * 1024,
	Concurrency:        30_000,
	MaxConnsPerIP:      10_000,

	TCPKeepalive:       true,
	TCPKeepalivePeriod: 120 * time.Minute,

	ErrorHandler: func(ctx *RequestCtx, err error) {
		logger.Warn("http connection error", "error", err)
	},
}

// Engine ties a router and a fasthttp server together with a middleware
// chain applied at listen time.
type Engine struct {
	*Router
	*Server
	middle []MiddlewareFunc
}

func NewServer(opt ServerOption) *Engine {
	return &Engine{
		Router: NewRouter(),
		Server: &fasthttp.Server{
			Handler:               opt.Handler,
			ErrorHandler:          opt.ErrorHandler,
			Name:                  opt.Name,
			ReadTimeout:           opt.ReadTimeout,
			WriteTimeout:          opt.WriteTimeout,
			IdleTimeout:           opt.IdleTimeout,
			ReadBufferSize:        opt.ReadBufferSize,
			WriteBufferSize:       opt.WriteBufferSize,
			MaxRequestBodySize:    opt.MaxRequestBodySize,
			Concurrency:           opt.Concurrency,
			MaxConnsPerIP:         opt.MaxConnsPerIP,
			TCPKeepalive:          opt.TCPKeepalive,
			TCPKeepalivePeriod:    opt.TCPKeepalivePeriod,
			NoDefaultServerHeader: true,
			NoDefaultDate:         true,
			NoDefaultContentType:  true,
			CloseOnShutdown:       true,
			LogAllErrors:          true,
			Logger:                logger.Get(),
		},
	}
}

// Use appends middleware. The first registered middleware ends up
// outermost, so it sees the request first and the response last.
func (e *Engine) Use(m MiddlewareFunc) {
	e.middle = append(e.middle, m)
}

func (e *Engine) ListenAndServe(addr string) error {
	e.buildHandler()
	logger.Info("http server listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

func (e *Engine) buildHandler() {
	for method, routes := range e.Router.List() {
		for _, r := range routes {
			logger.Debug("route registered", "method", method, "path", r)
		}
	}

	h := e.Router.Handler
	wrapped := slices.Clone(e.middle)
	slices.Reverse(wrapped)
	for _, m := range wrapped {
		h = m(h)
	}
	e.Server.Handler = h
}

// Shutdown drains active connections before returning.
func (e *Engine) Shutdown() {
	logger.Info("http server shutting down")
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
}
