package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MetadataFileName is the schema documentation document next to the tables.
const MetadataFileName = "schema_metadata.json"

// Headers gives the required column set, in order, per table.
var Headers = map[string][]string{
	TableCustomers:  {"customer_id", "name", "segment"},
	TableSuppliers:  {"supplier_id", "name"},
	TableProducts:   {"product_id", "name", "category", "price", "supplier_id"},
	TableOrders:     {"order_id", "customer_id", "order_date", "status"},
	TableOrderItems: {"order_id", "product_id", "quantity", "unit_price"},
}

// Source bundles the raw inputs for a load. Tests feed it from strings;
// Load feeds it from the data directory.
type Source struct {
	Customers  io.Reader
	Suppliers  io.Reader
	Products   io.Reader
	Orders     io.Reader
	OrderItems io.Reader
	Metadata   io.Reader
}

// Load reads the five CSV tables and the metadata document from dir and
// builds a validated Model. Any integrity violation aborts the whole load.
func Load(dir string, log *slog.Logger) (*Model, error) {
	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	open := func(name string) (io.Reader, error) {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		files = append(files, f)
		return f, nil
	}

	src := Source{}
	var err error
	if src.Customers, err = open(TableCustomers + ".csv"); err != nil {
		return nil, err
	}
	if src.Suppliers, err = open(TableSuppliers + ".csv"); err != nil {
		return nil, err
	}
	if src.Products, err = open(TableProducts + ".csv"); err != nil {
		return nil, err
	}
	if src.Orders, err = open(TableOrders + ".csv"); err != nil {
		return nil, err
	}
	if src.OrderItems, err = open(TableOrderItems + ".csv"); err != nil {
		return nil, err
	}
	if src.Metadata, err = open(MetadataFileName); err != nil {
		return nil, err
	}

	m, err := LoadSource(src)
	if err != nil {
		return nil, err
	}

	log.Info("dataset loaded",
		"dir", dir,
		"customers", len(m.Customers),
		"suppliers", len(m.Suppliers),
		"products", len(m.Products),
		"orders", len(m.Orders),
		"orderItems", len(m.OrderItems),
	)
	return m, nil
}

// LoadSource parses and validates a Source into a Model.
func LoadSource(src Source) (*Model, error) {
	m := &Model{}
	var err error

	if m.Customers, err = parseCustomers(src.Customers); err != nil {
		return nil, err
	}
	if m.Suppliers, err = parseSuppliers(src.Suppliers); err != nil {
		return nil, err
	}
	if m.Products, err = parseProducts(src.Products); err != nil {
		return nil, err
	}
	if m.Orders, err = parseOrders(src.Orders); err != nil {
		return nil, err
	}
	if m.OrderItems, err = parseOrderItems(src.OrderItems); err != nil {
		return nil, err
	}

	if src.Metadata != nil {
		if err := json.NewDecoder(src.Metadata).Decode(&m.Meta); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", MetadataFileName, err)
		}
	}

	if err := m.buildIndices(); err != nil {
		return nil, err
	}
	return m, nil
}

// buildIndices populates the primary-key maps and adjacency, validating
// uniqueness and referential integrity along the way.
func (m *Model) buildIndices() error {
	m.CustomerByID = make(map[string]Customer, len(m.Customers))
	for _, c := range m.Customers {
		if _, dup := m.CustomerByID[c.ID]; dup {
			return &IntegrityError{Table: TableCustomers, Detail: fmt.Sprintf("duplicate primary key %q", c.ID)}
		}
		m.CustomerByID[c.ID] = c
	}

	m.SupplierByID = make(map[string]Supplier, len(m.Suppliers))
	for _, s := range m.Suppliers {
		if _, dup := m.SupplierByID[s.ID]; dup {
			return &IntegrityError{Table: TableSuppliers, Detail: fmt.Sprintf("duplicate primary key %q", s.ID)}
		}
		m.SupplierByID[s.ID] = s
	}

	m.ProductByID = make(map[string]Product, len(m.Products))
	for _, p := range m.Products {
		if _, dup := m.ProductByID[p.ID]; dup {
			return &IntegrityError{Table: TableProducts, Detail: fmt.Sprintf("duplicate primary key %q", p.ID)}
		}
		if p.SupplierID != "" {
			if _, ok := m.SupplierByID[p.SupplierID]; !ok {
				return &IntegrityError{Table: TableProducts, Detail: fmt.Sprintf("product %q references unknown supplier %q", p.ID, p.SupplierID)}
			}
		}
		m.ProductByID[p.ID] = p
	}

	m.OrderByID = make(map[string]Order, len(m.Orders))
	m.OrdersByCustomer = make(map[string][]Order)
	for _, o := range m.Orders {
		if _, dup := m.OrderByID[o.ID]; dup {
			return &IntegrityError{Table: TableOrders, Detail: fmt.Sprintf("duplicate primary key %q", o.ID)}
		}
		if _, ok := m.CustomerByID[o.CustomerID]; !ok {
			return &IntegrityError{Table: TableOrders, Detail: fmt.Sprintf("order %q references unknown customer %q", o.ID, o.CustomerID)}
		}
		m.OrderByID[o.ID] = o
		m.OrdersByCustomer[o.CustomerID] = append(m.OrdersByCustomer[o.CustomerID], o)
	}

	m.ItemsByOrder = make(map[string][]OrderItem)
	for _, it := range m.OrderItems {
		if _, ok := m.OrderByID[it.OrderID]; !ok {
			return &IntegrityError{Table: TableOrderItems, Detail: fmt.Sprintf("order item references unknown order %q", it.OrderID)}
		}
		if _, ok := m.ProductByID[it.ProductID]; !ok {
			return &IntegrityError{Table: TableOrderItems, Detail: fmt.Sprintf("order item in %q references unknown product %q", it.OrderID, it.ProductID)}
		}
		m.ItemsByOrder[it.OrderID] = append(m.ItemsByOrder[it.OrderID], it)
	}

	return nil
}

// readTable reads a CSV table, checking that the header carries exactly the
// required columns in the declared order.
func readTable(table string, r io.Reader) ([][]string, error) {
	if r == nil {
		return nil, &IntegrityError{Table: table, Detail: "missing source"}
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, &IntegrityError{Table: table, Detail: fmt.Sprintf("failed to read header: %v", err)}
	}
	want := Headers[table]
	if len(header) != len(want) {
		return nil, &IntegrityError{Table: table, Detail: fmt.Sprintf("expected columns %v, got %v", want, header)}
	}
	for i, col := range want {
		if strings.TrimSpace(header[i]) != col {
			return nil, &IntegrityError{Table: table, Detail: fmt.Sprintf("expected column %q at position %d, got %q", col, i, header[i])}
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, &IntegrityError{Table: table, Detail: fmt.Sprintf("malformed row: %v", err)}
	}
	return rows, nil
}

func parseCustomers(r io.Reader) ([]Customer, error) {
	rows, err := readTable(TableCustomers, r)
	if err != nil {
		return nil, err
	}
	out := make([]Customer, 0, len(rows))
	for _, row := range rows {
		c := Customer{ID: row[0], Name: row[1], Segment: row[2]}
		if c.ID == "" {
			return nil, &IntegrityError{Table: TableCustomers, Detail: "empty customer_id"}
		}
		out = append(out, c)
	}
	return out, nil
}

func parseSuppliers(r io.Reader) ([]Supplier, error) {
	rows, err := readTable(TableSuppliers, r)
	if err != nil {
		return nil, err
	}
	out := make([]Supplier, 0, len(rows))
	for _, row := range rows {
		s := Supplier{ID: row[0], Name: row[1]}
		if s.ID == "" {
			return nil, &IntegrityError{Table: TableSuppliers, Detail: "empty supplier_id"}
		}
		out = append(out, s)
	}
	return out, nil
}

func parseProducts(r io.Reader) ([]Product, error) {
	rows, err := readTable(TableProducts, r)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(rows))
	for _, row := range rows {
		price, err := parseDecimal(TableProducts, "price", row[3])
		if err != nil {
			return nil, err
		}
		p := Product{ID: row[0], Name: row[1], Category: row[2], Price: price, SupplierID: strings.TrimSpace(row[4])}
		if p.ID == "" {
			return nil, &IntegrityError{Table: TableProducts, Detail: "empty product_id"}
		}
		out = append(out, p)
	}
	return out, nil
}

func parseOrders(r io.Reader) ([]Order, error) {
	rows, err := readTable(TableOrders, r)
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		o := Order{ID: row[0], CustomerID: row[1], OrderDate: row[2], Status: row[3]}
		if o.ID == "" {
			return nil, &IntegrityError{Table: TableOrders, Detail: "empty order_id"}
		}
		out = append(out, o)
	}
	return out, nil
}

func parseOrderItems(r io.Reader) ([]OrderItem, error) {
	rows, err := readTable(TableOrderItems, r)
	if err != nil {
		return nil, err
	}
	out := make([]OrderItem, 0, len(rows))
	for _, row := range rows {
		qty, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, &IntegrityError{Table: TableOrderItems, Detail: fmt.Sprintf("quantity %q is not an integer", row[2])}
		}
		price, err := parseDecimal(TableOrderItems, "unit_price", row[3])
		if err != nil {
			return nil, err
		}
		out = append(out, OrderItem{OrderID: row[0], ProductID: row[1], Quantity: qty, UnitPrice: price})
	}
	return out, nil
}

func parseDecimal(table, column, value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, &IntegrityError{Table: table, Detail: fmt.Sprintf("%s %q is not a decimal", column, value)}
	}
	return f, nil
}
