package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinRate(t *testing.T) {
	assert.Equal(t, 0, User{}.WinRate())
	assert.Equal(t, 100, User{Wins: 3}.WinRate())
	assert.Equal(t, 0, User{Losses: 2}.WinRate())
	assert.Equal(t, 67, User{Wins: 2, Losses: 1}.WinRate())
	assert.Equal(t, 33, User{Wins: 1, Losses: 2}.WinRate())
	assert.Equal(t, 50, User{Wins: 5, Losses: 5}.WinRate())
	assert.Equal(t, 3, User{Wins: 2, Losses: 1}.TotalGames())
}

func TestGameSummaryDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g := GameSummary{CreatedAt: start}
	assert.Nil(t, g.DurationSeconds())

	end := start.Add(95*time.Second + 600*time.Millisecond)
	g.FinishedAt = &end
	d := g.DurationSeconds()
	require.NotNil(t, d)
	assert.Equal(t, int64(96), *d)
}
