package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/metrics"
)

// QueryResult is the outcome of one ad-hoc SQL query. Query errors are
// reported in-band through Error so a bad query is a normal response, not a
// server failure.
type QueryResult struct {
	SQL     string           `json:"sql"`
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`
	Count   int              `json:"count"`
	Error   string           `json:"error,omitempty"`
}

// SQLMirror is an in-memory SQLite copy of the loaded tables, used for
// ad-hoc exploration of the sample data. It is populated once and queried
// read-only afterwards.
type SQLMirror struct {
	db *sql.DB
}

// NewSQLMirror creates the mirror schema and inserts every row of the model.
func NewSQLMirror(ctx context.Context, m *Model) (*SQLMirror, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A :memory: database exists per connection; pin the pool to one so
	// every query sees the same data.
	db.SetMaxOpenConns(1)

	if err := populate(ctx, db, m); err != nil {
		_ = db.Close()
		return nil, err
	}

	// The mirror is shared across requests and queried by untrusted callers;
	// lock the pinned connection down so DML/DDL fails in-band instead of
	// destroying the data for everyone.
	if _, err := db.ExecContext(ctx, `PRAGMA query_only = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set mirror read-only: %w", err)
	}
	return &SQLMirror{db: db}, nil
}

func populate(ctx context.Context, db *sql.DB, m *Model) error {
	ddl := []string{
		`CREATE TABLE customers (customer_id TEXT PRIMARY KEY, name TEXT, segment TEXT)`,
		`CREATE TABLE suppliers (supplier_id TEXT PRIMARY KEY, name TEXT)`,
		`CREATE TABLE products (product_id TEXT PRIMARY KEY, name TEXT, category TEXT, price REAL, supplier_id TEXT)`,
		`CREATE TABLE orders (order_id TEXT PRIMARY KEY, customer_id TEXT, order_date TEXT, status TEXT)`,
		`CREATE TABLE order_items (order_id TEXT, product_id TEXT, quantity INTEGER, unit_price REAL)`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create mirror schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mirror load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range m.Customers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO customers VALUES (?, ?, ?)`, c.ID, c.Name, c.Segment); err != nil {
			return fmt.Errorf("failed to insert customer %s: %w", c.ID, err)
		}
	}
	for _, s := range m.Suppliers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO suppliers VALUES (?, ?)`, s.ID, s.Name); err != nil {
			return fmt.Errorf("failed to insert supplier %s: %w", s.ID, err)
		}
	}
	for _, p := range m.Products {
		var supplierID any
		if p.SupplierID != "" {
			supplierID = p.SupplierID
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO products VALUES (?, ?, ?, ?, ?)`, p.ID, p.Name, p.Category, p.Price, supplierID); err != nil {
			return fmt.Errorf("failed to insert product %s: %w", p.ID, err)
		}
	}
	for _, o := range m.Orders {
		if _, err := tx.ExecContext(ctx, `INSERT INTO orders VALUES (?, ?, ?, ?)`, o.ID, o.CustomerID, o.OrderDate, o.Status); err != nil {
			return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
		}
	}
	for _, it := range m.OrderItems {
		if _, err := tx.ExecContext(ctx, `INSERT INTO order_items VALUES (?, ?, ?, ?)`, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
			return fmt.Errorf("failed to insert order item %s/%s: %w", it.OrderID, it.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mirror load: %w", err)
	}
	return nil
}

// Query executes one SQL statement against the mirror and returns the rows.
// SQL-level failures come back in-band on the result.
func (q *SQLMirror) Query(ctx context.Context, query string) QueryResult {
	start := time.Now()
	result := q.query(ctx, query)
	var err error
	if result.Error != "" {
		err = fmt.Errorf("%s", result.Error)
	}
	metrics.RecordSQLQuery(time.Since(start), err)
	return result
}

func (q *SQLMirror) query(ctx context.Context, query string) QueryResult {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return QueryResult{SQL: query, Error: err.Error()}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{SQL: query, Error: err.Error()}
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{SQL: query, Error: err.Error()}
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{SQL: query, Error: err.Error()}
	}

	return QueryResult{SQL: query, Columns: columns, Rows: out, Count: len(out)}
}

// Close releases the underlying database.
func (q *SQLMirror) Close() error {
	return q.db.Close()
}
