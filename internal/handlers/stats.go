// internal/handlers/stats.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/database"
	"github.com/jason-s-yu/tictactoe/internal/models"
	"github.com/jason-s-yu/tictactoe/internal/protocol"
	"github.com/sirupsen/logrus"
)

// StatsReader is the read side of the store used by the statistics endpoints.
type StatsReader interface {
	Ranking(ctx context.Context, limit int) ([]models.RankingEntry, error)
	RecentGames(ctx context.Context, limit int) ([]models.GameSummary, error)
	PlayerGames(ctx context.Context, playerID uuid.UUID, limit int) ([]models.GameSummary, error)
	GameCounts(ctx context.Context) (models.GameCounts, error)
	UserCounts(ctx context.Context) (models.UserCounts, error)
}

// RoomLister lists rooms waiting for a second player.
type RoomLister interface {
	ListOpenRooms() iter.Seq[protocol.OpenRoom]
}

// DrawLabel stands in for the winner of a drawn game.
const DrawLabel = "Draw"

// envelope is the JSON body of every statistics response.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Count     *int   `json:"count,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Path      string `json:"path,omitempty"`
	Method    string `json:"method,omitempty"`
}

// StatsHandlers serves the read-only statistics API.
type StatsHandlers struct {
	reader StatsReader
	rooms  RoomLister
	logger *logrus.Logger
	debug  bool
	now    func() time.Time
}

// NewStatsHandlers builds the statistics handlers. With debug set, 500 responses include the
// underlying error text.
func NewStatsHandlers(reader StatsReader, rooms RoomLister, logger *logrus.Logger, debug bool) *StatsHandlers {
	return &StatsHandlers{reader: reader, rooms: rooms, logger: logger, debug: debug, now: time.Now}
}

// Routes mounts the API under the returned router.
func (h *StatsHandlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ranking", h.Ranking())
	r.Get("/recent-games", h.RecentGames())
	r.Get("/stats/admin", h.AdminStats())
	r.Get("/players/{id}/games", h.PlayerGames())
	r.Get("/rooms", h.Rooms())
	r.NotFound(NotFound)
	return r
}

type rankingRow struct {
	Position         int       `json:"position"`
	ID               uuid.UUID `json:"id"`
	Username         string    `json:"username"`
	Wins             int       `json:"wins"`
	Losses           int       `json:"losses"`
	TotalGames       int       `json:"totalGames"`
	WinRate          float64   `json:"winRate"`
	WinRateFormatted string    `json:"winRateFormatted"`
}

type gameRow struct {
	ID         uuid.UUID  `json:"id"`
	Player1    string     `json:"player1"`
	Player2    string     `json:"player2"`
	Winner     string     `json:"winner"`
	Duration   *int64     `json:"duration"`
	FinishedAt *time.Time `json:"finishedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func formatWinRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 2, 64) + "%"
}

func winnerLabel(g models.GameSummary) string {
	if g.WinnerUsername == "" {
		return DrawLabel
	}
	return g.WinnerUsername
}

func toRankingRows(entries []models.RankingEntry) []rankingRow {
	rows := make([]rankingRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, rankingRow{
			Position:         i + 1,
			ID:               e.ID,
			Username:         e.Username,
			Wins:             e.Wins,
			Losses:           e.Losses,
			TotalGames:       e.TotalGames,
			WinRate:          e.WinRate,
			WinRateFormatted: formatWinRate(e.WinRate),
		})
	}
	return rows
}

func toGameRows(games []models.GameSummary) []gameRow {
	rows := make([]gameRow, 0, len(games))
	for _, g := range games {
		rows = append(rows, gameRow{
			ID:         g.ID,
			Player1:    g.Player1Username,
			Player2:    g.Player2Username,
			Winner:     winnerLabel(g),
			Duration:   g.DurationSeconds(),
			FinishedAt: g.FinishedAt,
			CreatedAt:  g.CreatedAt,
		})
	}
	return rows
}

func (h *StatsHandlers) Ranking() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.reader.Ranking(r.Context(), parseLimit(r, 10, 100))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		rows := toRankingRows(entries)
		n := len(rows)
		writeJSON(w, http.StatusOK, envelope{
			Success:   true,
			Data:      rows,
			Count:     &n,
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

func (h *StatsHandlers) RecentGames() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := h.reader.RecentGames(r.Context(), parseLimit(r, 10, 100))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		rows := toGameRows(games)
		n := len(rows)
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: rows, Count: &n})
	}
}

func (h *StatsHandlers) PlayerGames() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid player id"})
			return
		}
		games, err := h.reader.PlayerGames(r.Context(), playerID, parseLimit(r, 20, 100))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		rows := toGameRows(games)
		n := len(rows)
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: rows, Count: &n})
	}
}

type adminOverview struct {
	TotalUsers     int `json:"totalUsers"`
	TotalGames     int `json:"totalGames"`
	ActiveGames    int `json:"activeGames"`
	FinishedGames  int `json:"finishedGames"`
	WaitingGames   int `json:"waitingGames"`
	AbandonedGames int `json:"abandonedGames"`
}

type adminGameStats struct {
	models.GameCounts
	// WinRate is the share of finished games that had a winner.
	WinRate int `json:"winRate"`
}

type activityRow struct {
	ID         uuid.UUID  `json:"id"`
	Players    string     `json:"players"`
	Winner     string     `json:"winner"`
	Duration   *int64     `json:"duration"`
	FinishedAt *time.Time `json:"finishedAt"`
}

type topPlayer struct {
	Position int     `json:"position"`
	Username string  `json:"username"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"winRate"`
}

type adminStats struct {
	Overview       adminOverview     `json:"overview"`
	GameStats      adminGameStats    `json:"gameStats"`
	UserStats      models.UserCounts `json:"userStats"`
	RecentActivity []activityRow     `json:"recentActivity"`
	TopPlayers     []topPlayer       `json:"topPlayers"`
	Timestamp      string            `json:"timestamp"`
}

func (h *StatsHandlers) AdminStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		users, err := h.reader.UserCounts(ctx)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		games, err := h.reader.GameCounts(ctx)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		recent, err := h.reader.RecentGames(ctx, 5)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		top, err := h.reader.Ranking(ctx, 5)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		stats := adminStats{
			Overview: adminOverview{
				TotalUsers:     users.TotalUsers,
				TotalGames:     games.Total,
				ActiveGames:    games.Active,
				FinishedGames:  games.Finished,
				WaitingGames:   games.Waiting,
				AbandonedGames: games.Abandoned,
			},
			GameStats:      adminGameStats{GameCounts: games, WinRate: models.WinRatePercent(games.GamesWithWinner, games.Draws)},
			UserStats:      users,
			RecentActivity: make([]activityRow, 0, len(recent)),
			TopPlayers:     make([]topPlayer, 0, len(top)),
			Timestamp:      h.now().UTC().Format(time.RFC3339Nano),
		}
		for _, g := range recent {
			stats.RecentActivity = append(stats.RecentActivity, activityRow{
				ID:         g.ID,
				Players:    fmt.Sprintf("%s vs %s", g.Player1Username, g.Player2Username),
				Winner:     winnerLabel(g),
				Duration:   g.DurationSeconds(),
				FinishedAt: g.FinishedAt,
			})
		}
		for i, p := range top {
			stats.TopPlayers = append(stats.TopPlayers, topPlayer{
				Position: i + 1,
				Username: p.Username,
				Wins:     p.Wins,
				Losses:   p.Losses,
				WinRate:  p.WinRate,
			})
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: stats})
	}
}

// Rooms lists live rooms waiting for a second player.
func (h *StatsHandlers) Rooms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := slices.Collect(h.rooms.ListOpenRooms())
		if rooms == nil {
			rooms = []protocol.OpenRoom{}
		}
		n := len(rooms)
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: rooms, Count: &n})
	}
}

// Health reports liveness along with the number of live rooms.
func Health(rooms interface{ RoomCount() int }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"rooms":     rooms.RoomCount(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// NotFound answers unknown routes with the standard envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, envelope{
		Message: "endpoint not found",
		Path:    r.URL.Path,
		Method:  r.Method,
	})
}

// fail maps a store error onto a status code and logs it.
func (h *StatsHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg, detail := http.StatusInternalServerError, "internal server error", "internal error"
	switch {
	case database.IsConstraintViolation(err):
		status, msg, detail = http.StatusBadRequest, "database error", "constraint violation"
	case database.IsUnavailable(err):
		status, msg, detail = http.StatusServiceUnavailable, "database connection error", "service unavailable"
	case errors.Is(err, context.Canceled):
		return
	case h.debug:
		detail = err.Error()
	}
	h.logger.WithError(err).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": status,
	}).Error("statistics request failed")
	writeJSON(w, status, envelope{Message: msg, Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
