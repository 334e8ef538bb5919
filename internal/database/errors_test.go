package database

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsConstraintViolation(t *testing.T) {
	assert.True(t, IsConstraintViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsConstraintViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23514"})))
	assert.False(t, IsConstraintViolation(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, IsConstraintViolation(errors.New("boom")))
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.False(t, IsUnavailable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUnavailable(ErrNotFound))
}
