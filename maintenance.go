package storedb

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// Administrative operations. These are batch, non-concurrent helpers
// outside the hot path: they run directly on the acquired connection and
// bypass the result cache. Table names come from operators or from the
// catalog, not from request input, but they are still checked against a
// strict identifier shape before being spliced into SQL.

var identRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("storedb: invalid identifier %q", name)
	}
	return nil
}

// OptimizeTable runs OPTIMIZE TABLE on the given table.
func (m *Manager) OptimizeTable(ctx context.Context, table string) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	db, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	rows, err := db.QueryContext(ctx, "OPTIMIZE TABLE `"+table+"`")
	if err != nil {
		return classified(err)
	}
	return rows.Close()
}

// CheckTable runs the storage-engine integrity check and returns the
// reported status text (typically "OK").
func (m *Manager) CheckTable(ctx context.Context, table string) (string, error) {
	if err := checkIdent(table); err != nil {
		return "", err
	}
	db, err := m.acquire(ctx)
	if err != nil {
		return "", err
	}
	rows, err := db.QueryContext(ctx, "CHECK TABLE `"+table+"`")
	if err != nil {
		return "", classified(err)
	}
	defer rows.Close()

	status := ""
	for rows.Next() {
		// CHECK TABLE reports (Table, Op, Msg_type, Msg_text)
		var tbl, op, msgType, msgText string
		if err := rows.Scan(&tbl, &op, &msgType, &msgText); err != nil {
			return "", err
		}
		status = msgText
	}
	return status, rows.Err()
}

// DatabaseSize reports the total size in bytes of the configured database
// according to information_schema.
func (m *Manager) DatabaseSize(ctx context.Context) (int64, error) {
	db, err := m.acquire(ctx)
	if err != nil {
		return 0, err
	}
	var size int64
	err = db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables WHERE table_schema = ?",
		m.cfg.Database,
	).Scan(&size)
	if err != nil {
		return 0, classified(err)
	}
	return size, nil
}

// listTables returns every table in the current database.
func (m *Manager) listTables(ctx context.Context) ([]string, error) {
	db, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, classified(err)
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Backup writes a plain-SQL dump (schema plus data for every table) to w.
func (m *Manager) Backup(ctx context.Context, w io.Writer) error {
	tables, err := m.listTables(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "-- storedb backup\n-- database: %s\n-- generated: %s\n\n",
		m.cfg.Database, m.now().UTC().Format(time.RFC3339))

	for _, table := range tables {
		if err := checkIdent(table); err != nil {
			return err
		}
		if err := m.dumpTable(ctx, w, table); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) dumpTable(ctx context.Context, w io.Writer, table string) error {
	db, err := m.acquire(ctx)
	if err != nil {
		return err
	}

	var name, ddl string
	if err := db.QueryRowContext(ctx, "SHOW CREATE TABLE `"+table+"`").Scan(&name, &ddl); err != nil {
		return classified(err)
	}
	fmt.Fprintf(w, "DROP TABLE IF EXISTS `%s`;\n%s;\n\n", table, ddl)

	rows, err := db.QueryContext(ctx, "SELECT * FROM `"+table+"`")
	if err != nil {
		return classified(err)
	}
	defer rows.Close()

	snapshot, err := scanRowSet(rows)
	if err != nil {
		return err
	}
	for _, row := range snapshot.Rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = sqlLiteral(v)
		}
		fmt.Fprintf(w, "INSERT INTO `%s` (`%s`) VALUES (%s);\n",
			table, strings.Join(snapshot.Columns, "`, `"), strings.Join(values, ", "))
	}
	if snapshot.Len() > 0 {
		fmt.Fprintln(w)
	}
	return nil
}

// sqlLiteral renders a snapshot value as a dump literal.
func sqlLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int64:
		return fmt.Sprintf("%d", x)
	case float64:
		return fmt.Sprintf("%g", x)
	case time.Time:
		return "'" + x.UTC().Format("2006-01-02 15:04:05") + "'"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", x), "'", "''") + "'"
	}
}
