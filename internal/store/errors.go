package store

import (
	"errors"

	"shipclass/internal/models"
)

var (
	// ErrNotFound matches models.ErrNotFound so callers outside the store can test for it.
	ErrNotFound  = models.ErrNotFound
	ErrDuplicate = errors.New("store: duplicate resource")
)
