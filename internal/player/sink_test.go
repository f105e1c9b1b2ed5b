package player

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeCounter struct {
	closes int
}

func (c *closeCounter) Accept([]byte) error { return nil }
func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

type abortCounter struct {
	closeCounter
	aborts int
}

func (a *abortCounter) Abort() { a.aborts++ }

func TestAbortSinkPrefersAbort(t *testing.T) {
	a := &abortCounter{}
	AbortSink(a)
	assert.Equal(t, 1, a.aborts)
	assert.Equal(t, 0, a.closes)

	c := &closeCounter{}
	AbortSink(c)
	assert.Equal(t, 1, c.closes)
}

func TestWriterSinkKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf, nil)

	require.NoError(t, sink.Accept([]byte("101")))
	require.NoError(t, sink.Accept([]byte("102")))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	assert.Equal(t, "101102", buf.String())
	assert.Equal(t, int64(6), sink.Written())
	assert.ErrorIs(t, sink.Accept([]byte("103")), ErrSinkClosed)
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.aac")

	sink, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Accept([]byte{1, 2}))
	require.NoError(t, sink.Close())

	sink, err = NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Accept([]byte{3}))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestPercentToVolume(t *testing.T) {
	assert.Equal(t, MinVolumeDB, PercentToVolume(0))
	assert.Equal(t, MinVolumeDB, PercentToVolume(-5))
	assert.Equal(t, 0.0, PercentToVolume(100))
	assert.Equal(t, 0.0, PercentToVolume(150))

	prev := PercentToVolume(1)
	for p := 2.0; p < 100; p++ {
		v := PercentToVolume(p)
		assert.Greater(t, v, prev)
		prev = v
	}
}

func TestCommandSinkCloseWaitsForExit(t *testing.T) {
	cat, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	sink, err := NewCommandSink(cat, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Accept([]byte("segment")))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.Error(t, sink.Accept([]byte("late")))
}

func TestCommandSinkAbortKillsPlayer(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	sink, err := NewCommandSink(sleep, []string{"60"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		sink.Abort()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("abort did not return")
	}
	// Close after Abort is a no-op
	_ = sink.Close()
}
