package resolve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	calls atomic.Int32
	list  AddressList
	err   error
	delay time.Duration
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (AddressList, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.list, s.err
}

func TestCache_HitsAfterFirstResolve(t *testing.T) {
	stub := &stubResolver{list: AddressList{"192.0.2.1"}}
	c := NewCache(stub, 16, time.Minute, 0)

	for i := 0; i < 3; i++ {
		list, err := c.Resolve(context.Background(), "example.test")
		require.NoError(t, err)
		assert.Equal(t, AddressList{"192.0.2.1"}, list)
	}
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_ReturnsCopies(t *testing.T) {
	stub := &stubResolver{list: AddressList{"192.0.2.1"}}
	c := NewCache(stub, 16, time.Minute, 0)

	list, err := c.Resolve(context.Background(), "example.test")
	require.NoError(t, err)
	list[0] = "mutated"

	again, err := c.Resolve(context.Background(), "example.test")
	require.NoError(t, err)
	assert.Equal(t, AddressList{"192.0.2.1"}, again)
}

func TestCache_DoesNotCacheFailures(t *testing.T) {
	stub := &stubResolver{err: errors.New("boom")}
	c := NewCache(stub, 16, time.Minute, 0)

	_, err := c.Resolve(context.Background(), "example.test")
	assert.Error(t, err)
	_, err = c.Resolve(context.Background(), "example.test")
	assert.Error(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCache_Expires(t *testing.T) {
	stub := &stubResolver{list: AddressList{"192.0.2.1"}}
	c := NewCache(stub, 16, 20*time.Millisecond, 0)

	_, err := c.Resolve(context.Background(), "example.test")
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.Resolve(context.Background(), "example.test")
	require.NoError(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestCache_CollapsesConcurrentLookups(t *testing.T) {
	stub := &stubResolver{list: AddressList{"192.0.2.1"}, delay: 100 * time.Millisecond}
	c := NewCache(stub, 16, time.Minute, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := c.Resolve(context.Background(), "example.test")
			assert.NoError(t, err)
			assert.Equal(t, AddressList{"192.0.2.1"}, list)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), stub.calls.Load())
}

type gatedResolver struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *gatedResolver) Resolve(ctx context.Context, _ string) (AddressList, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	select {
	case <-g.release:
		return AddressList{"192.0.2.9"}, nil
	case <-ctx.Done():
		return AddressList{}, ctx.Err()
	}
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	g := &gatedResolver{started: make(chan struct{}), release: make(chan struct{})}
	c := NewCache(g, 16, time.Minute, time.Second)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Resolve(first, "example.test")
		firstErr <- err
	}()
	<-g.started

	type outcome struct {
		list AddressList
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		list, err := c.Resolve(context.Background(), "example.test")
		second <- outcome{list, err}
	}()

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, ErrResolveFailed)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(g.release)
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, AddressList{"192.0.2.9"}, got.list)
	case <-time.After(time.Second):
		t.Fatal("second caller never received the shared result")
	}
	assert.Equal(t, int32(1), g.calls.Load())
}

func TestCache_SharedCallBoundedByTimeout(t *testing.T) {
	g := &gatedResolver{started: make(chan struct{}), release: make(chan struct{})}
	c := NewCache(g, 16, time.Minute, 30*time.Millisecond)

	start := time.Now()
	_, err := c.Resolve(context.Background(), "example.test")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, c.Len())
}
