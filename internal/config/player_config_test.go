package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/util"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func load(t *testing.T, args ...string) (*PlayerConfig, error) {
	t.Helper()
	v, err := NewViper(newFlags(t, args...))
	require.NoError(t, err)
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, util.LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, entity.SinkTypePlayer, cfg.Sink)
	assert.Equal(t, entity.SegmentErrorWarn, cfg.SegmentError)
	assert.Equal(t, 8, cfg.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.Headers)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := load(t,
		"--sink", "speaker",
		"--volume", "150",
		"--queue-size", "3",
		"--segment-error", "fail",
		"--log-level", "debug",
		"-H", "Referer: https://www.nhk.or.jp/radio/",
	)
	require.NoError(t, err)

	assert.Equal(t, entity.SinkTypeSpeaker, cfg.Sink)
	assert.Equal(t, 100, cfg.Volume)
	assert.Equal(t, 3, cfg.QueueSize)
	assert.Equal(t, entity.SegmentErrorFail, cfg.SegmentError)
	assert.Equal(t, util.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, "https://www.nhk.or.jp/radio/", cfg.Headers["Referer"])
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("NHKRADIO_QUEUE_SIZE", "5")
	t.Setenv("NHKRADIO_SINK", "stdout")
	t.Setenv(EnvPlayerArgs, "-nodisp -i pipe:0")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.QueueSize)
	assert.Equal(t, entity.SinkTypeStdout, cfg.Sink)
	assert.Equal(t, []string{"-nodisp", "-i", "pipe:0"}, cfg.PlayerArgs)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nhk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("live-edge: 3\nsegment-error: skip\n"), 0644))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.LiveEdge)
	assert.Equal(t, entity.SegmentErrorSkip, cfg.SegmentError)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := load(t, "--sink", "vinyl")
	assert.Error(t, err)

	_, err = load(t, "--sink", "file")
	assert.Error(t, err)

	_, err = load(t, "--queue-size", "0")
	assert.Error(t, err)

	_, err = load(t, "--segment-error", "ignore")
	assert.Error(t, err)

	_, err = load(t, "--http-request-timeout", "0s")
	assert.ErrorContains(t, err, "http-request-timeout")

	_, err = load(t, "--http-request-timeout=-5s")
	assert.Error(t, err)

	cfg, err := load(t, "--http-request-timeout", "3s")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestPipelineConfig(t *testing.T) {
	cfg, err := load(t, "--segment-retry-count", "1", "--refresh-max-delay", "10s", "--live-edge", "2")
	require.NoError(t, err)

	pc := cfg.PipelineConfig("https://example.com/live.m3u8")
	assert.Equal(t, "https://example.com/live.m3u8", pc.PlaylistURL)
	assert.Equal(t, 1, pc.SegmentRetry.MaxRetries)
	assert.Equal(t, 10*time.Second, pc.RefreshRetry.MaxDelay)
	assert.Equal(t, -1, pc.RefreshRetry.MaxRetries)
	assert.Equal(t, 2, pc.LiveEdgeSegments)
}
