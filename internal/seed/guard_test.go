package seed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquire_NoOpOnContention(t *testing.T) {
	g := NewGuard()
	require.True(t, g.TryAcquire("tags"), "first acquire")
	assert.False(t, g.TryAcquire("tags"), "second acquire while held")
	assert.True(t, g.TryAcquire("events"), "domains are independent")

	g.Release("tags")
	assert.True(t, g.TryAcquire("tags"), "acquire after release")
}

func TestRun_ReleasesOnError(t *testing.T) {
	g := NewGuard()
	ran, err := g.Run(context.Background(), "templates", func(context.Context) error {
		return errors.New("insert failed")
	})
	assert.True(t, ran)
	assert.Error(t, err)
	assert.False(t, g.Held("templates"))
}

func TestRun_ReleasesOnPanic(t *testing.T) {
	g := NewGuard()
	assert.Panics(t, func() {
		_, _ = g.Run(context.Background(), "tags", func(context.Context) error {
			panic("boom")
		})
	})
	assert.False(t, g.Held("tags"))
}

func TestRun_ConcurrentSingleExecution(t *testing.T) {
	g := NewGuard()
	var calls atomic.Int32
	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = g.Run(context.Background(), "events", func(context.Context) error {
			calls.Add(1)
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	var wg sync.WaitGroup
	var skipped atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ran, _ := g.Run(context.Background(), "events", func(context.Context) error {
				calls.Add(1)
				return nil
			})
			if !ran {
				skipped.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)
	<-done

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(8), skipped.Load())
	assert.False(t, g.Held("events"))
}
