package reconcile

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// isSerializationFailure reports whether the store aborted the transaction
// because of a lock conflict with a concurrent one. Such transactions are safe
// to run again from the start.
func isSerializationFailure(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}
