package database

import (
	"errors"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrGameTaken is returned by JoinGame when the game is no longer waiting for a second player.
	ErrGameTaken = errors.New("game already taken")
	// ErrAlreadyFinished is returned by FinishGame when the game is no longer in play.
	ErrAlreadyFinished = errors.New("game already finished")
)

// IsConstraintViolation reports a Postgres integrity constraint violation (SQLSTATE class 23).
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}

// IsUnavailable reports whether err means the database could not be reached.
func IsUnavailable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
