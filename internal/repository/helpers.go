package repository

import (
	"database/sql"
	"errors"
)

// optionalRow turns sql.ErrNoRows into a nil row. A missing key is not an
// error for local storage lookups.
func optionalRow[T any](row *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
