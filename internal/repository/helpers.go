package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound turns sql.ErrNoRows into (nil, nil). Repositories return
// that pair for an absent row and leave the NOT_FOUND decision to the
// service, which is what lets an ended session and an expired one look the
// same to callers.
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
