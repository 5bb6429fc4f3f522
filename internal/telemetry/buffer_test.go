package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimBufferDropsOldestPastCap(t *testing.T) {
	r := &sqliteRepository{cfg: Config{BatchSize: 4}}
	for i := 0; i < 50; i++ {
		r.buffer = append(r.buffer, &Snapshot{Control: ControlMetrics{Target: i}})
	}

	r.trimBuffer()

	capacity := 4 * bufferCapFactor
	assert.Len(t, r.buffer, capacity, "Expected the buffer trimmed to its cap")
	assert.Equal(t, 50-capacity, r.buffer[0].Control.Target, "Expected the oldest snapshots dropped first")
	assert.Equal(t, 49, r.buffer[len(r.buffer)-1].Control.Target, "Expected the newest snapshot kept")
}

func TestTrimBufferLeavesSmallBufferAlone(t *testing.T) {
	r := &sqliteRepository{cfg: Config{BatchSize: 4}}
	for i := 0; i < 5; i++ {
		r.buffer = append(r.buffer, &Snapshot{})
	}

	r.trimBuffer()

	assert.Len(t, r.buffer, 5, "Expected a buffer under the cap untouched")
}
