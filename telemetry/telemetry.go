// Package telemetry counts sessions, results and errors with OpenTelemetry
// and optionally serves them in the Prometheus text format.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"livescribe/log"
	"livescribe/session"
)

const meterName = "livescribe"

type Server struct {
	provider *sdkmetric.MeterProvider
	srv      *http.Server
	ln       net.Listener
}

// Start installs a meter provider backed by a Prometheus exporter as the
// global one and serves /metrics on bind.
func Start(bind string) (*Server, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("listen %s: %w", bind, err)
	}
	otel.SetMeterProvider(provider)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s := &Server{
		provider: provider,
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:       ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("metrics server: %v", err)
		}
	}()
	log.Infof("metrics listening on %s", ln.Addr())
	return s, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return errors.Join(s.srv.Shutdown(ctx), s.provider.Shutdown(ctx))
}

// Recorder turns transcript updates into counter increments.
type Recorder struct {
	started metric.Int64Counter
	results metric.Int64Counter
	errs    metric.Int64Counter
}

// NewRecorder creates the instruments on meter, or on the global meter
// when meter is nil.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	started, err := meter.Int64Counter("livescribe.sessions.started",
		metric.WithDescription("Recognition sessions started"))
	if err != nil {
		return nil, err
	}
	results, err := meter.Int64Counter("livescribe.results",
		metric.WithDescription("Partial and final results shown"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("livescribe.errors",
		metric.WithDescription("Recognition errors by code"))
	if err != nil {
		return nil, err
	}
	return &Recorder{started: started, results: results, errs: errs}, nil
}

func (r *Recorder) Observe(u session.Update) {
	ctx := context.Background()
	switch u.Kind {
	case session.UpdateStart:
		r.started.Add(ctx, 1, metric.WithAttributes(attribute.String("locale", u.Locale)))
	case session.UpdatePartial, session.UpdateFinal:
		r.results.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", u.Kind.String())))
	case session.UpdateError:
		r.errs.Add(ctx, 1, metric.WithAttributes(attribute.String("code", strconv.Itoa(int(u.Code)))))
	}
}
