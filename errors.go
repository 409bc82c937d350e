package storedb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
)

// ErrorCategory is the semantic class of a low-level driver failure.
// Classification drives logging detail and the reconnect/retry decisions
// made by the connection manager and the executor.
type ErrorCategory int

const (
	ErrCatUnknown ErrorCategory = iota
	ErrCatAuthentication
	ErrCatDatabaseNotFound
	ErrCatConnectionRefused
	ErrCatTimeout
	ErrCatDuplicateEntry
	ErrCatTableNotFound
	ErrCatConnectionLost
	ErrCatDeadlock
)

// String returns the category name used in structured logs.
func (c ErrorCategory) String() string {
	switch c {
	case ErrCatAuthentication:
		return "authentication"
	case ErrCatDatabaseNotFound:
		return "database_not_found"
	case ErrCatConnectionRefused:
		return "connection_refused"
	case ErrCatTimeout:
		return "timeout"
	case ErrCatDuplicateEntry:
		return "duplicate_entry"
	case ErrCatTableNotFound:
		return "table_not_found"
	case ErrCatConnectionLost:
		return "connection_lost"
	case ErrCatDeadlock:
		return "deadlock"
	default:
		return "unknown"
	}
}

// ErrMaxConnectAttempts is returned (wrapped) once every connection attempt
// has been exhausted. It is fatal: the manager does not enter a half-open
// state, callers are expected to give up.
var ErrMaxConnectAttempts = errors.New("storedb: exhausted connection attempts")

// ErrNoActiveTransaction is returned by Commit/Rollback at depth 0.
var ErrNoActiveTransaction = errors.New("storedb: no active transaction")

// ValidationError is raised when a statement is rejected before execution.
type ValidationError struct {
	Rule  string // name of the matched deny rule
	Query string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("storedb: query rejected by validator (%s)", e.Rule)
}

// ClassifiedError wraps a driver failure together with its category.
type ClassifiedError struct {
	Category ErrorCategory
	Err      error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("storedb: %s: %v", e.Category, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classify maps a raw driver error into a semantic category.
// It is pure, total and never panics; nil maps to ErrCatUnknown.
func Classify(err error) ErrorCategory {
	if err == nil {
		return ErrCatUnknown
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1044, 1045: // ER_DBACCESS_DENIED_ERROR, ER_ACCESS_DENIED_ERROR
			return ErrCatAuthentication
		case 1049: // ER_BAD_DB_ERROR
			return ErrCatDatabaseNotFound
		case 1022, 1062: // ER_DUP_KEY, ER_DUP_ENTRY
			return ErrCatDuplicateEntry
		case 1146: // ER_NO_SUCH_TABLE
			return ErrCatTableNotFound
		case 1205, 1213: // ER_LOCK_WAIT_TIMEOUT, ER_LOCK_DEADLOCK
			return ErrCatDeadlock
		case 2002, 2003: // CR_CONNECTION_ERROR, CR_CONN_HOST_ERROR
			return ErrCatConnectionRefused
		case 2006, 2013: // CR_SERVER_GONE_ERROR, CR_SERVER_LOST
			return ErrCatConnectionLost
		}
	}

	if errors.Is(err, mysql.ErrInvalidConn) {
		return ErrCatConnectionLost
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCatTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrCatTimeout
	}

	// Fall back to text patterns for failures the driver surfaces as plain
	// strings (dial errors, dropped sockets, proxies in between).
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied"):
		return ErrCatAuthentication
	case strings.Contains(msg, "unknown database"):
		return ErrCatDatabaseNotFound
	case strings.Contains(msg, "connection refused"):
		return ErrCatConnectionRefused
	case strings.Contains(msg, "i/o timeout"), strings.Contains(msg, "timeout"):
		return ErrCatTimeout
	case strings.Contains(msg, "duplicate entry"):
		return ErrCatDuplicateEntry
	case strings.Contains(msg, "doesn't exist"):
		return ErrCatTableNotFound
	case strings.Contains(msg, "server has gone away"),
		strings.Contains(msg, "lost connection"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "invalid connection"),
		strings.Contains(msg, "use of closed network connection"):
		return ErrCatConnectionLost
	case strings.Contains(msg, "deadlock"):
		return ErrCatDeadlock
	}
	return ErrCatUnknown
}

// classified wraps err with its category unless it already carries one.
func classified(err error) error {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return err
	}
	return &ClassifiedError{Category: Classify(err), Err: err}
}
