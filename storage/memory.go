package storage

import (
	"sync"
	"time"
)

type MemoryCooldown struct {
	last  map[int64]time.Time
	mutex sync.Mutex
	now   func() time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{
		last: make(map[int64]time.Time),
		now:  time.Now,
	}
}

func (m *MemoryCooldown) MayProceed(userId int64, window time.Duration) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	last, ok := m.last[userId]
	if ok && now.Sub(last) < window {
		return false, nil
	}
	m.last[userId] = now
	return true, nil
}

func (m *MemoryCooldown) RemainingWait(userId int64, window time.Duration) (time.Duration, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	last, ok := m.last[userId]
	if !ok {
		return 0, nil
	}
	elapsed := m.now().Sub(last)
	if elapsed >= window {
		return 0, nil
	}
	return (window - elapsed).Truncate(time.Minute), nil
}

func (m *MemoryCooldown) Close() error {
	return nil
}
