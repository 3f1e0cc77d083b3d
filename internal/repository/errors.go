// Package repository implements the booking core's stores on MySQL and
// in memory.  Lookups that yield no rows are reported as
// model.ErrNotFound so that higher layers never depend on database/sql
// sentinels.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/study-hall-booking/internal/model"
)

// ErrEmailExists is returned when registering an already used email.
var ErrEmailExists = errors.New("email already exists")

// notFound translates sql.ErrNoRows into model.ErrNotFound and wraps
// any other error with the operation name.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isDuplicateKey reports MySQL error 1062 (duplicate entry).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
