package testutil

import "github.com/roach88/qplan/internal/ctree"

// Catalog returns the tables used across tests:
//
//	customers(id, name, city?, active)            key id
//	orders(id, customer_id, status, total, note?)  key id, customer_id -> customers
//	employees(id, name, manager_id?)               key id, manager_id -> employees
//
// Columns marked ? are nullable. orders.status is the enum order_status
// stored as int.
func Catalog() []ctree.TableDef {
	return []ctree.TableDef{
		{
			Name: "customers",
			Columns: []ctree.ColumnDef{
				{Name: "id", Type: "int"},
				{Name: "name", Type: "string"},
				{Name: "city", Type: "string", Nullable: true},
				{Name: "active", Type: "bool"},
			},
			Key: []string{"id"},
		},
		{
			Name: "orders",
			Columns: []ctree.ColumnDef{
				{Name: "id", Type: "int"},
				{Name: "customer_id", Type: "int"},
				{Name: "status", Type: "int", Enum: "order_status"},
				{Name: "total", Type: "decimal"},
				{Name: "note", Type: "string", Nullable: true},
			},
			Key: []string{"id"},
			ForeignKeys: []ctree.ForeignKeyDef{
				{Columns: []string{"customer_id"}, RefTable: "customers", RefColumns: []string{"id"}},
			},
		},
		{
			Name: "employees",
			Columns: []ctree.ColumnDef{
				{Name: "id", Type: "int"},
				{Name: "name", Type: "string"},
				{Name: "manager_id", Type: "int", Nullable: true},
			},
			Key: []string{"id"},
			ForeignKeys: []ctree.ForeignKeyDef{
				{Columns: []string{"manager_id"}, RefTable: "employees", RefColumns: []string{"id"}},
			},
		},
	}
}

// Tree wraps q in a ctree.Tree over Catalog.
func Tree(q ctree.Query) *ctree.Tree {
	return &ctree.Tree{Catalog: Catalog(), Query: q}
}
