package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestForEach_VisitsEachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	hits := make([]int32, 37)
	err := ForEach(len(hits), cfg, func(i int) error {
		atomic.AddInt32(&hits[i], 1)
		return nil
	})
	require.NoError(t, err)
	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestForEach_PreservesSlotOrder(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 1}

	out := make([]int, 100)
	require.NoError(t, ForEach(len(out), cfg, func(i int) error {
		out[i] = i * i
		return nil
	}))
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestForEach_ReturnsError(t *testing.T) {
	boom := errors.New("boom")

	for _, cfg := range []Config{
		{Enabled: false},
		{Enabled: true, NumWorkers: 4, MinChunkSize: 1},
	} {
		err := ForEach(20, cfg, func(i int) error {
			if i == 13 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
	}
}

func TestForEach_SequentialStopsAtFirstError(t *testing.T) {
	var visited int
	err := ForEach(10, Config{Enabled: false}, func(i int) error {
		visited++
		if i == 2 {
			return errors.New("stop")
		}
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 3, visited)
}

func TestForEach_Empty(t *testing.T) {
	called := false
	require.NoError(t, ForEach(0, DefaultConfig(), func(int) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

func TestConfig_Chunk(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	assert.Equal(t, 3, cfg.chunk(10))

	cfg.MinChunkSize = 8
	assert.Equal(t, 8, cfg.chunk(10))
	assert.True(t, cfg.sequential(5))
	assert.False(t, cfg.sequential(10))
}
