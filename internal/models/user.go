package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// User is a player identity with its durable win/loss counters.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	CreatedAt time.Time `json:"createdAt"`
}

// TotalGames counts decided games only; draws are not recorded on the user.
func (u User) TotalGames() int {
	return u.Wins + u.Losses
}

// WinRate is the rounded percentage of decided games won, or 0 with no decided games.
func (u User) WinRate() int {
	return WinRatePercent(u.Wins, u.Losses)
}

// WinRatePercent computes round(wins / (wins + losses) * 100).
func WinRatePercent(wins, losses int) int {
	total := wins + losses
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(wins) / float64(total) * 100))
}
