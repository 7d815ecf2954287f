package otel

import (
	"context"
	"testing"

	"github.com/mrzor/ctftrace/internal/config"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestNewResource(t *testing.T) {
	cfg := &config.OTELConfig{
		ServiceName:        "ctftrace-test",
		ResourceAttributes: "board=esp32s3",
	}

	res, err := newResource(context.Background(), cfg, "session-1")
	require.NoError(t, err)

	set := res.Set()
	name, ok := set.Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "ctftrace-test", name.AsString())

	board, ok := set.Value(attribute.Key("board"))
	require.True(t, ok)
	assert.Equal(t, "esp32s3", board.AsString())

	instance, ok := set.Value(attribute.Key("service.instance.id"))
	require.True(t, ok)
	assert.Equal(t, "session-1", instance.AsString())
}

func TestInitProvider(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.OTELConfig{ServiceName: "ctftrace-test", Insecure: true}

	tp, err := InitProvider(context.Background(), cfg, "session-1", trace.TraceID{}, logger)
	require.NoError(t, err)
	require.NotNil(t, tp)
	// No spans were recorded, so shutdown does not contact the collector.
	assert.NoError(t, ShutdownProvider(context.Background(), tp))
}

func TestShutdownProvider_Nil(t *testing.T) {
	assert.NoError(t, ShutdownProvider(context.Background(), nil))
}
