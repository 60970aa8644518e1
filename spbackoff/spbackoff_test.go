package spbackoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelfResetAttemptsCeilsUp(t *testing.T) {
	require.Equal(t, 30, SelfResetAttempts(1*time.Second))
	require.Equal(t, 300, SelfResetAttempts(100*time.Millisecond))
	require.Equal(t, 1, SelfResetAttempts(time.Minute))
}

func TestSelfResetAttemptsFloorsAtOneMillisecond(t *testing.T) {
	require.Equal(t, 30000, SelfResetAttempts(0))
}

func TestBusyPolicyParameters(t *testing.T) {
	b := BusyPolicy()
	require.Equal(t, 20*time.Millisecond, b.InitialInterval)
	require.Equal(t, 1*time.Second, b.MaxInterval)
	require.Equal(t, time.Duration(0), b.MaxElapsedTime)
}
