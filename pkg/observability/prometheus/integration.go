package prometheus

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Handler serves DefaultRegistry in the Prometheus text format
func Handler() http.Handler {
	return HandlerFor(DefaultRegistry)
}

// HandlerFor serves the given gatherer
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// FastHTTPHandler adapts Handler for fasthttp
func FastHTTPHandler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(Handler())
}

// Serve exposes DefaultRegistry on addr at path until ctx is done.
func Serve(ctx context.Context, addr, path string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, path, DefaultRegistry)
}

// ServeListener exposes g on ln at path until ctx is done. Other paths get
// 404. The listener is closed on return.
func ServeListener(ctx context.Context, ln net.Listener, path string, g prometheus.Gatherer) error {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(HandlerFor(g))
	srv := &fasthttp.Server{
		Name: "pollexec-metrics",
		Handler: func(rc *fasthttp.RequestCtx) {
			if string(rc.Path()) != path {
				rc.Error(fasthttp.StatusMessage(fasthttp.StatusNotFound), fasthttp.StatusNotFound)
				return
			}
			metricsHandler(rc)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
