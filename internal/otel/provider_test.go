package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/kinemo/motionrec/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSink(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "motionrec"})
	assert.ErrorIs(t, err, errNoSink)
}

func TestNew_FileExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(FromConfig(config.OTelConfig{
		Enabled:      true,
		ServiceName:  "motionrec",
		BatchTimeout: time.Second,
	}, &buf))
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())

	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestMeter_Counter(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	counter, err := p.Meter("recorder").Int64Counter("recorder.keyframes")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}

func TestMeter_ExportsToSink(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:        true,
		ServiceName:    "motionrec",
		BatchTimeout:   time.Second,
		MetricInterval: time.Hour,
		Sink:           &buf,
	})
	require.NoError(t, err)

	counter, err := p.Meter("github.com/kinemo/motionrec/internal/recorder").Int64Counter("recorder.keyframes")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "recorder.keyframes")
}
