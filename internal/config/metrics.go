package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	loadMetricsOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordConfigValidationEvent counts Load outcomes per environment. It runs before
// the OTel runtime exists, so events land on whatever global provider is installed.
func recordConfigValidationEvent(ctx context.Context, env, outcome, errorClass string) {
	loadMetricsOnce.Do(func() {
		c, err := otel.Meter("session-guard/config").Int64Counter(
			"config.load.events",
			metric.WithDescription("Configuration load attempts by environment and outcome"),
		)
		if err == nil {
			loadCounter = c
		}
	})
	if loadCounter == nil {
		return
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("env", normalizeConfigProfile(env)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

func normalizeConfigProfile(env string) string {
	v := strings.ToLower(strings.TrimSpace(env))
	if v == "" {
		return "unknown"
	}
	return v
}

func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "load .env"):
		return "dotenv"
	case strings.HasPrefix(msg, "validate config"):
		return "validation"
	case strings.HasPrefix(msg, "parse "):
		return "parse"
	default:
		return "load"
	}
}
