package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientRateLimiterBuckets(t *testing.T) {
	rl := NewClientRateLimiter()

	for i := 0; i < DefaultRateLimits.MaxPresenceUpdates; i++ {
		assert.True(t, rl.Allow("heartbeat"))
	}
	assert.False(t, rl.Allow("heartbeat"))
	assert.False(t, rl.Allow("update_status"))

	// other buckets are unaffected
	assert.True(t, rl.Allow("send_message"))
	assert.True(t, rl.Allow("typing_start"))
	assert.True(t, rl.Allow("mark_read"))
	assert.True(t, rl.Allow("ping"))
}

func TestClientRateLimiterSharedBuckets(t *testing.T) {
	rl := NewClientRateLimiter()

	// typing_start and typing_stop draw from the same budget
	for i := 0; i < DefaultRateLimits.MaxTypingEvents; i++ {
		if i%2 == 0 {
			assert.True(t, rl.Allow("typing_start"))
		} else {
			assert.True(t, rl.Allow("typing_stop"))
		}
	}
	assert.False(t, rl.Allow("typing_start"))
	assert.False(t, rl.Allow("typing_stop"))
}

func TestClientRateLimiterRefill(t *testing.T) {
	rl := NewClientRateLimiter()
	for i := 0; i < DefaultRateLimits.MaxMessages; i++ {
		rl.Allow("send_message")
	}
	assert.False(t, rl.Allow("send_message"))

	rl.mu.Lock()
	rl.lastRefill = time.Now().Add(-2 * time.Minute)
	rl.mu.Unlock()
	assert.True(t, rl.Allow("send_message"))
}

func TestClientRateLimiterUnknownType(t *testing.T) {
	rl := NewClientRateLimiter()
	assert.False(t, rl.Allow("shutdown_server"))
}
