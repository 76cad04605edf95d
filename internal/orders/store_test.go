package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupRoundStore spins up a throwaway Postgres container.
func setupRoundStore(t *testing.T) *RoundStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed store test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("bingo"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	store, err := NewRoundStore(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create round store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestRoundStore_SaveAndLoad(t *testing.T) {
	assert := assert.New(t)
	store := setupRoundStore(t)
	ctx := context.Background()

	record := RoundRecord{
		Numbers: []int{14, 3, 75, 41},
		Winners: []string{"987654321"},
		EndedAt: time.Now().UTC().Truncate(time.Second),
	}
	assert.NoError(store.SaveRound(ctx, record))

	rounds, err := store.RecentRounds(ctx, 10)
	assert.NoError(err)
	if assert.Len(rounds, 1) {
		assert.Equal(record.Numbers, rounds[0].Numbers)
		assert.Equal(record.Winners, rounds[0].Winners)
		assert.WithinDuration(record.EndedAt, rounds[0].EndedAt, time.Second)
	}
}

func TestRoundStore_RecentRoundsNewestFirstWithLimit(t *testing.T) {
	assert := assert.New(t)
	store := setupRoundStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		err := store.SaveRound(ctx, RoundRecord{
			Numbers: []int{i + 1},
			Winners: []string{},
			EndedAt: base.Add(time.Duration(i) * time.Minute),
		})
		assert.NoError(err)
	}

	rounds, err := store.RecentRounds(ctx, 2)
	assert.NoError(err)
	if assert.Len(rounds, 2) {
		assert.Equal([]int{3}, rounds[0].Numbers)
		assert.Equal([]int{2}, rounds[1].Numbers)
	}
}

func TestRoundStore_GameOverRoundHasNoWinners(t *testing.T) {
	assert := assert.New(t)
	store := setupRoundStore(t)
	ctx := context.Background()

	numbers := make([]int, 75)
	for i := range numbers {
		numbers[i] = i + 1
	}
	assert.NoError(store.SaveRound(ctx, RoundRecord{Numbers: numbers, Winners: []string{}}))

	rounds, err := store.RecentRounds(ctx, 1)
	assert.NoError(err)
	if assert.Len(rounds, 1) {
		assert.Len(rounds[0].Numbers, 75)
		assert.Empty(rounds[0].Winners)
	}
}
