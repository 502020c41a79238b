package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPool_Reuse(t *testing.T) {
	timer := GetTimer(10 * time.Millisecond)
	<-timer.C
	PutTimer(timer)

	// an unfired timer must not leak its tick into the next user
	timer = GetTimer(time.Hour)
	PutTimer(timer)

	start := time.Now()
	timer = GetTimer(20 * time.Millisecond)
	defer PutTimer(timer)

	select {
	case <-timer.C:
		require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}
