package metrics

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider owns the meter provider backing the global otel meter and the
// Prometheus registry it exports to.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *promclient.Registry
}

// NewProvider creates a Prometheus-backed meter provider. When global is true
// it is installed as the otel global meter provider, which GenerationMetrics
// records through.
func NewProvider(global bool) (*Provider, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	if global {
		otel.SetMeterProvider(mp)
	}

	return &Provider{meterProvider: mp, registry: registry}, nil
}

// MeterProvider returns the underlying otel meter provider
func (p *Provider) MeterProvider() *sdkmetric.MeterProvider {
	return p.meterProvider
}

// Handler serves the Prometheus text exposition of every recorded metric
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.meterProvider.Shutdown(ctx)
}
