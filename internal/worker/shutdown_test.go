package worker

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownFlag(t *testing.T) {
	var f ShutdownFlag
	assert.False(t, f.IsSet())

	f.Set()
	assert.True(t, f.IsSet())

	f.Set()
	assert.True(t, f.IsSet())
}

func TestNotifyShutdown(t *testing.T) {
	logger, _ := newTestLogger()
	flag := &ShutdownFlag{}

	stop := NotifyShutdown(flag, logger, syscall.SIGUSR1)
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	assert.Eventually(t, flag.IsSet, time.Second, 5*time.Millisecond)
}
