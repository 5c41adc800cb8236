package telemetry_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/UnknownOlympus/hotelgate/internal/telemetry"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	shutdown := telemetry.Setup(t.Context(), logger, "hotelgate")

	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(t.Context()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "127.0.0.1:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	shutdown := telemetry.Setup(t.Context(), logger, "hotelgate")

	require.NotNil(t, shutdown)
	// nothing was exported, so flushing has nothing to send
	require.NoError(t, shutdown(t.Context()))
}
