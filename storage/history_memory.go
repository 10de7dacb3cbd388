package storage

import (
	"sync"
	"time"
)

const maxRecordsPerUser = 100

type MemoryHistory struct {
	records map[int64][]GenerationRecord
	mutex   sync.RWMutex
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		records: make(map[int64][]GenerationRecord),
	}
}

func (m *MemoryHistory) SaveGeneration(record GenerationRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	records := append(m.records[record.UserId], record)
	if len(records) > maxRecordsPerUser {
		records = records[len(records)-maxRecordsPerUser:]
	}
	m.records[record.UserId] = records
	return nil
}

func (m *MemoryHistory) RecentGenerations(userId int64, limit int) ([]GenerationRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	records := m.records[userId]
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}

	// newest first
	result := make([]GenerationRecord, 0, limit)
	for i := len(records) - 1; i >= len(records)-limit; i-- {
		result = append(result, records[i])
	}
	return result, nil
}

func (m *MemoryHistory) Close() error {
	return nil
}
