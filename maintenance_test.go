package storedb

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestOptimizeTable(t *testing.T) {
	m, mock := connectTestManager(t, Config{})

	mock.ExpectQuery("OPTIMIZE TABLE `orders`").
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Op", "Msg_type", "Msg_text"}).
			AddRow("shop.orders", "optimize", "status", "OK"))

	if err := m.OptimizeTable(context.Background(), "orders"); err != nil {
		t.Fatalf("OptimizeTable: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOptimizeTable_RejectsBadIdentifier(t *testing.T) {
	m, _ := newTestManager(t, Config{})

	err := m.OptimizeTable(context.Background(), "orders; DROP TABLE x")
	if err == nil || !strings.Contains(err.Error(), "invalid identifier") {
		t.Fatalf("expected identifier rejection, got %v", err)
	}
}

func TestCheckTable_ReturnsStatusText(t *testing.T) {
	m, mock := connectTestManager(t, Config{})

	mock.ExpectQuery("CHECK TABLE `orders`").
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Op", "Msg_type", "Msg_text"}).
			AddRow("shop.orders", "check", "status", "OK"))

	status, err := m.CheckTable(context.Background(), "orders")
	if err != nil {
		t.Fatalf("CheckTable: %v", err)
	}
	if status != "OK" {
		t.Fatalf("status=%q want OK", status)
	}
}

func TestDatabaseSize(t *testing.T) {
	m, mock := connectTestManager(t, Config{Database: "shop"})

	mock.ExpectQuery("SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables WHERE table_schema = ?").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"size"}).AddRow(int64(4096)))

	size, err := m.DatabaseSize(context.Background())
	if err != nil {
		t.Fatalf("DatabaseSize: %v", err)
	}
	if size != 4096 {
		t.Fatalf("size=%d want 4096", size)
	}
}

func TestBackup_DumpsSchemaAndRows(t *testing.T) {
	m, mock := connectTestManager(t, Config{Database: "shop"})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	mock.ExpectQuery("SHOW TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_shop"}).AddRow("orders"))
	mock.ExpectQuery("SHOW CREATE TABLE `orders`").
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).
			AddRow("orders", "CREATE TABLE `orders` (`id` int, `note` varchar(64))"))
	mock.ExpectQuery("SELECT * FROM `orders`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "note"}).
			AddRow(int64(1), "it's fine").
			AddRow(int64(2), nil))

	var out strings.Builder
	if err := m.Backup(context.Background(), &out); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	dump := out.String()
	for _, want := range []string{
		"-- database: shop",
		"-- generated: 2026-03-01T12:00:00Z",
		"DROP TABLE IF EXISTS `orders`;",
		"CREATE TABLE `orders`",
		"INSERT INTO `orders` (`id`, `note`) VALUES (1, 'it''s fine');",
		"INSERT INTO `orders` (`id`, `note`) VALUES (2, NULL);",
	} {
		if !strings.Contains(dump, want) {
			t.Fatalf("dump missing %q:\n%s", want, dump)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{true, "1"},
		{false, "0"},
		{int64(42), "42"},
		{float64(3.5), "3.5"},
		{"o'clock", "'o''clock'"},
		{time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "'2026-01-02 03:04:05'"},
	}
	for _, tt := range tests {
		if got := sqlLiteral(tt.in); got != tt.want {
			t.Fatalf("sqlLiteral(%v)=%q want %q", tt.in, got, tt.want)
		}
	}
}
