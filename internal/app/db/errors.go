package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the store maps onto its own errors.
const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return sqlState(err) == uniqueViolation
}

// IsCheckViolation reports whether err is a CHECK constraint violation, such as an
// unknown message kind.
func IsCheckViolation(err error) bool {
	return sqlState(err) == checkViolation
}
