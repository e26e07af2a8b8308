// Package metrics provides Prometheus collectors for the conversion pipeline,
// search and artifact delivery.
//
// Every recording method is safe on a nil receiver so components can run
// with metrics disabled.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all collectors on one registry.
type Metrics struct {
	registry   *prometheus.Registry
	Conversion *ConversionMetrics
	Search     *SearchMetrics
	Delivery   *DeliveryMetrics
}

// New creates a registry with process, Go runtime and application collectors.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("metrics: go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("metrics: process collector: %w", err)
	}

	conversion, err := NewConversionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: conversion: %w", err)
	}
	search, err := NewSearchMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: search: %w", err)
	}
	delivery, err := NewDeliveryMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: delivery: %w", err)
	}
	return &Metrics{
		registry:   registry,
		Conversion: conversion,
		Search:     search,
		Delivery:   delivery,
	}, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler(logger *slog.Logger) http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
