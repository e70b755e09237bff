package service

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

func TestAutosaverCoalescesBursts(t *testing.T) {
	var calls int32
	saved := make(chan struct{}, 4)
	a := NewAutosaver(30*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		saved <- struct{}{}
		return nil
	})

	for i := 0; i < 5; i++ {
		a.Schedule()
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, a.Status().Pending)

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("autosave never fired")
	}
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	status := a.Status()
	assert.Equal(t, StatusSaved, status.Status)
	assert.False(t, status.Pending)
	assert.False(t, status.LastSaved.IsZero())
}

func TestAutosaverReadsStateAtFireTime(t *testing.T) {
	var mu sync.Mutex
	value := "first"
	got := make(chan string, 1)
	a := NewAutosaver(20*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		got <- value
		return nil
	})

	a.Schedule()
	mu.Lock()
	value = "second"
	mu.Unlock()

	select {
	case v := <-got:
		assert.Equal(t, "second", v)
	case <-time.After(2 * time.Second):
		t.Fatal("autosave never fired")
	}
}

func TestAutosaverFlush(t *testing.T) {
	var calls int32
	a := NewAutosaver(time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	a.Schedule()
	require.NoError(t, a.Flush(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, a.Status().Pending)
}

func TestAutosaverErrorStatus(t *testing.T) {
	fail := true
	a := NewAutosaver(time.Hour, func(ctx context.Context) error {
		if fail {
			return errors.New("store offline")
		}
		return nil
	})

	err := a.Flush(context.Background())
	require.Error(t, err)
	status := a.Status()
	assert.Equal(t, StatusError, status.Status)
	assert.Equal(t, "store offline", status.LastError)

	fail = false
	require.NoError(t, a.Flush(context.Background()))
	status = a.Status()
	assert.Equal(t, StatusSaved, status.Status)
	assert.Empty(t, status.LastError)
}

func TestAutosaverCancel(t *testing.T) {
	var calls int32
	a := NewAutosaver(20*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	a.Schedule()
	a.Cancel()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
