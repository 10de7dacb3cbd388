package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCooldown_FirstRequestIsEligible(t *testing.T) {
	m := NewMemoryCooldown()

	ok, err := m.MayProceed(42, time.Hour)

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCooldown_SecondRequestInsideWindowIsRejected(t *testing.T) {
	m := NewMemoryCooldown()
	now := time.Now()
	m.now = func() time.Time { return now }

	ok, err := m.MayProceed(42, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(30 * time.Minute)
	ok, err = m.MayProceed(42, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCooldown_RequestsSpacedByWindowAreBothAccepted(t *testing.T) {
	m := NewMemoryCooldown()
	now := time.Now()
	m.now = func() time.Time { return now }

	ok, err := m.MayProceed(42, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(time.Hour)
	ok, err = m.MayProceed(42, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCooldown_RejectionLeavesRecordUnchanged(t *testing.T) {
	m := NewMemoryCooldown()
	now := time.Now()
	m.now = func() time.Time { return now }

	ok, err := m.MayProceed(42, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	// a rejected attempt must not push the window forward
	now = now.Add(59 * time.Minute)
	ok, err = m.MayProceed(42, time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(time.Minute)
	ok, err = m.MayProceed(42, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCooldown_UsersAreIndependent(t *testing.T) {
	m := NewMemoryCooldown()

	ok, err := m.MayProceed(1, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.MayProceed(2, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCooldown_RemainingWait(t *testing.T) {
	m := NewMemoryCooldown()
	now := time.Now()
	m.now = func() time.Time { return now }

	wait, err := m.RemainingWait(42, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, wait, "user with no record waits nothing")

	ok, err := m.MayProceed(42, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	wait, err = m.RemainingWait(42, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, wait)

	// non-increasing as time advances, truncated to whole minutes
	now = now.Add(10*time.Minute + 30*time.Second)
	wait, err = m.RemainingWait(42, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 49*time.Minute, wait)

	now = now.Add(49*time.Minute + 30*time.Second)
	wait, err = m.RemainingWait(42, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, wait, "exactly zero at and after the boundary")
}

func TestMemoryCooldown_ConcurrentBurstAcceptsExactlyOne(t *testing.T) {
	m := NewMemoryCooldown()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.MayProceed(42, time.Hour)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
}
