package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistory_RecentGenerationsNewestFirst(t *testing.T) {
	m := NewMemoryHistory()

	for i := 0; i < 5; i++ {
		err := m.SaveGeneration(GenerationRecord{
			UserId:   42,
			Breed:    fmt.Sprintf("кот-%d", i),
			HasImage: i%2 == 0,
		})
		require.NoError(t, err)
	}

	records, err := m.RecentGenerations(42, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "кот-4", records[0].Breed)
	assert.Equal(t, "кот-2", records[2].Breed)
	assert.False(t, records[0].CreatedAt.IsZero())
}

func TestMemoryHistory_UnknownUserIsEmpty(t *testing.T) {
	m := NewMemoryHistory()

	records, err := m.RecentGenerations(7, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryHistory_CapsRecordsPerUser(t *testing.T) {
	m := NewMemoryHistory()

	for i := 0; i < maxRecordsPerUser+10; i++ {
		err := m.SaveGeneration(GenerationRecord{UserId: 42, Breed: fmt.Sprintf("кот-%d", i)})
		require.NoError(t, err)
	}

	records, err := m.RecentGenerations(42, 0)
	require.NoError(t, err)
	assert.Len(t, records, maxRecordsPerUser)
	assert.Equal(t, fmt.Sprintf("кот-%d", maxRecordsPerUser+9), records[0].Breed)
}
