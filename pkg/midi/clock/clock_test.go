package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_NowMicrosIsMonotonicNonDecreasing(t *testing.T) {
	var c System
	a := c.NowMicros()
	time.Sleep(time.Millisecond)
	b := c.NowMicros()
	assert.GreaterOrEqual(t, b, a)
}

func TestSystem_SleepHonoursCancellation(t *testing.T) {
	var c System
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := c.Sleep(ctx, time.Second)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSystem_SleepReturnsAfterDuration(t *testing.T) {
	var c System
	start := time.Now()
	err := c.Sleep(context.Background(), 5*time.Millisecond)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestSystem_SleepNonPositiveIsNoop(t *testing.T) {
	var c System
	err := c.Sleep(context.Background(), 0)
	assert.NoError(t, err)
}
