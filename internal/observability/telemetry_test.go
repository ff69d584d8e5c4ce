package observability

import (
	"context"
	"testing"

	"github.com/annel0/spacebobble/internal/config"
	"github.com/stretchr/testify/require"
)

func TestInitTelemetry_Disabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTelemetry_Enabled(t *testing.T) {
	// экспортер подключается лениво, поэтому недоступный коллектор не мешает запуску
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "127.0.0.1:1",
		ServiceName: "bobble-test",
	})
	require.NoError(t, err)
	_ = shutdown(context.Background())
}
