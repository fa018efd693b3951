// Package dataset loads the star-schema sample tables, validates their
// referential integrity, and exposes join-ready indices. The model is built
// once at startup and is read-only afterwards, so it can be shared across
// concurrent requests without locking.
package dataset

import "fmt"

// Table names in their fixed rendering order.
const (
	TableCustomers  = "customers"
	TableSuppliers  = "suppliers"
	TableProducts   = "products"
	TableOrders     = "orders"
	TableOrderItems = "order_items"
)

// TableOrder is the fixed order in which tables are rendered and reported.
var TableOrder = []string{TableCustomers, TableSuppliers, TableProducts, TableOrders, TableOrderItems}

// Customer is a dimension row.
type Customer struct {
	ID      string `json:"customer_id"`
	Name    string `json:"name"`
	Segment string `json:"segment"`
}

// Supplier is a dimension row.
type Supplier struct {
	ID   string `json:"supplier_id"`
	Name string `json:"name"`
}

// Product is a dimension row. SupplierID may be empty: a product without a
// linked supplier is valid sample data.
type Product struct {
	ID         string  `json:"product_id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
	SupplierID string  `json:"supplier_id,omitempty"`
}

// Order is the fact header row.
type Order struct {
	ID         string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	OrderDate  string `json:"order_date"`
	Status     string `json:"status"`
}

// OrderItem is the atomic fact row. Every join path used by the narrative
// representation terminates at exactly one OrderItem.
type OrderItem struct {
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// FieldMeta documents a single column for the annotated representation.
type FieldMeta struct {
	Description  string `json:"description"`
	Type         string `json:"type,omitempty"`
	Unit         string `json:"unit,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// TableMeta documents one table.
type TableMeta struct {
	Description string               `json:"description"`
	PrimaryKey  string               `json:"primary_key"`
	ForeignKeys map[string]string    `json:"foreign_keys,omitempty"`
	Fields      map[string]FieldMeta `json:"fields"`
}

// Metadata is the schema documentation document, keyed by table name.
type Metadata struct {
	Tables map[string]TableMeta `json:"tables"`
}

// Model is the immutable, fully joinable dataset. Slices preserve source
// file row order; maps index by primary key.
type Model struct {
	Customers  []Customer
	Suppliers  []Supplier
	Products   []Product
	Orders     []Order
	OrderItems []OrderItem

	Meta Metadata

	CustomerByID map[string]Customer
	SupplierByID map[string]Supplier
	ProductByID  map[string]Product
	OrderByID    map[string]Order

	// Adjacency, precomputed at load time.
	ItemsByOrder     map[string][]OrderItem
	OrdersByCustomer map[string][]Order
}

// SupplierForProduct resolves the optional Product -> Supplier edge.
// The second return is false when the product has no linked supplier.
func (m *Model) SupplierForProduct(productID string) (Supplier, bool) {
	p, ok := m.ProductByID[productID]
	if !ok || p.SupplierID == "" {
		return Supplier{}, false
	}
	s, ok := m.SupplierByID[p.SupplierID]
	return s, ok
}

// RowCount returns the number of rows in the named table, or -1 for an
// unknown table.
func (m *Model) RowCount(table string) int {
	switch table {
	case TableCustomers:
		return len(m.Customers)
	case TableSuppliers:
		return len(m.Suppliers)
	case TableProducts:
		return len(m.Products)
	case TableOrders:
		return len(m.Orders)
	case TableOrderItems:
		return len(m.OrderItems)
	}
	return -1
}

// IntegrityError reports a malformed or unjoinable source table. It is
// fatal: the load aborts rather than producing a partially joinable model.
type IntegrityError struct {
	Table  string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("dataset integrity violation in %s: %s", e.Table, e.Detail)
}
