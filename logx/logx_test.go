package logx

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")

	log, closeFn, err := New(path)
	require.NoError(t, err)
	defer closeFn()

	log.Infof("hello %s", "world")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[relay:info]")
	require.Contains(t, string(data), "hello world")
}

func TestNewRejectsUnwritablePath(t *testing.T) {
	_, _, err := New(filepath.Join(t.TempDir(), "missing-dir", "relay.log"))
	require.Error(t, err)
}

func TestNopDiscardsOutput(t *testing.T) {
	log := Nop()
	require.Equal(t, io.Discard, log.out.Writer())
	log.Infof("should not panic")
	log.Errorf("should not panic either")
}
