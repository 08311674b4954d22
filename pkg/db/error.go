package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// The drivers surface typed errors inconsistently, so constraint detection
// falls back to message sniffing per dialect.

func IsDuplicateKeyErr(err error) bool {
	return matchesConstraint(err, gorm.ErrDuplicatedKey,
		"duplicate key value violates unique constraint", // postgres 23505
		"Error 1062",               // mysql
		"UNIQUE constraint failed", // sqlite
	)
}

func matchesConstraint(err error, sentinel error, fragments ...string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sentinel) {
		return true
	}

	msg := err.Error()
	for _, fragment := range fragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
