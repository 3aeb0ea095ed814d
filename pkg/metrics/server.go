package metrics

import (
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"logremap/pkg/logger"
)

// Server exposes /metrics, /healthz and /statsz over fasthttp.
type Server struct {
	m    *Metrics
	addr string
	srv  *fasthttp.Server
}

func NewServer(m *Metrics, addr string) *Server {
	s := &Server{m: m, addr: addr}

	promHandler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}),
	)

	handler := func(ctx *fasthttp.RequestCtx) {
		logger.LogRequestFast(ctx)
		switch string(ctx.Path()) {
		case "/metrics":
			promHandler(ctx)
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		case "/statsz":
			ctx.SetContentType("application/json")
			enc, err := json.Marshal(m.Snapshot())
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				return
			}
			ctx.SetBody(enc)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			ctx.SetBodyString(`{"error":"not found"}`)
			ctx.SetContentType("application/json")
		}
	}

	const (
		readBufferSize = 16 * 1024
		readTimeout    = 10 * time.Second
		writeTimeout   = 10 * time.Second
		idleTimeout    = 30 * time.Second
	)
	s.srv = &fasthttp.Server{
		Handler:           handler,
		ReadBufferSize:    readBufferSize,
		ReduceMemoryUsage: true,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Start runs the server in a goroutine and returns its error channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics_server_started", "addr", s.addr)
		errCh <- s.srv.ListenAndServe(s.addr)
	}()
	return errCh
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

// Handler returns the raw handler, used by tests.
func (s *Server) Handler() fasthttp.RequestHandler { return s.srv.Handler }
