// Package service implements the business logic between the HTTP handlers
// and the postgres store.
package service

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// isNoRows reports whether err is the pgx no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
