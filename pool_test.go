package sheetsql

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolCallerRuns(t *testing.T) {
	t.Parallel()

	p := newWorkerPool(PoolConfig{MinWorkers: 1, MaxWorkers: 1, KeepAlive: time.Second, QueueCapacity: 1})
	defer p.close()

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, p.submit(func() {
		close(started)
		<-release
	}))
	<-started

	// fills the queue
	var queued atomic.Bool
	require.True(t, p.submit(func() { queued.Store(true) }))

	// no room and no worker to add: runs before submit returns
	var onCaller bool
	require.True(t, p.submit(func() { onCaller = true }))
	assert.True(t, onCaller)
	assert.Equal(t, int64(1), p.stats().CallerRuns)

	close(release)
	assert.Eventually(t, queued.Load, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return p.stats().Completed == 3 }, time.Second, time.Millisecond)
}

func TestWorkerPoolGrowsAndShrinks(t *testing.T) {
	t.Parallel()

	p := newWorkerPool(PoolConfig{MinWorkers: 1, MaxWorkers: 3, KeepAlive: 10 * time.Millisecond, QueueCapacity: 0})
	defer p.close()
	assert.Equal(t, 1, p.stats().Workers)

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, p.submit(func() {
		close(started)
		<-release
	}))
	<-started

	// a worker is busy and nothing can be queued
	done := make(chan struct{})
	require.True(t, p.submit(func() { close(done) }))
	<-done
	assert.Zero(t, p.stats().CallerRuns)

	close(release)
	assert.Eventually(t, func() bool { return p.stats().Workers == 1 }, time.Second, time.Millisecond,
		"extra workers exit after the keep-alive")
}

func TestWorkerPoolRunsEveryTask(t *testing.T) {
	t.Parallel()

	p := newWorkerPool(PoolConfig{MinWorkers: 2, MaxWorkers: 4, KeepAlive: time.Second, QueueCapacity: 3})

	const n = 200
	var ran atomic.Int64
	var maxSeen atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.submit(func() {
				ran.Add(1)
				if w := int32(p.stats().Workers); w > maxSeen.Load() {
					maxSeen.Store(w)
				}
			})
		}()
	}
	wg.Wait()
	p.close()

	assert.Equal(t, int64(n), ran.Load())
	assert.Equal(t, int64(n), p.stats().Completed)
	assert.LessOrEqual(t, maxSeen.Load(), int32(4))
	assert.Zero(t, p.stats().Workers)
}

func TestWorkerPoolClosed(t *testing.T) {
	t.Parallel()

	p := newWorkerPool(PoolConfig{MinWorkers: 1, MaxWorkers: 1, KeepAlive: time.Second, QueueCapacity: 1})
	p.close()
	p.close()

	assert.False(t, p.submit(func() { t.Error("task ran on a closed pool") }))
}
