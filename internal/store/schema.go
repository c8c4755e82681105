package store

import "strings"

// schema is written once and specialised per dialect by replacing the
// {{pk}}, {{money}}, {{blob}} and {{ts}} markers.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS authors (
		id {{pk}},
		name VARCHAR(100) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id {{pk}},
		title VARCHAR(200) NOT NULL,
		author_id BIGINT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		publication_year INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id {{pk}},
		name VARCHAR(200) NOT NULL,
		sku {{sku}} NOT NULL,
		price {{money}} NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS indexed_products (
		id {{pk}},
		name VARCHAR(200) NOT NULL,
		sku {{sku}} NOT NULL,
		price {{money}} NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS indexed_products_sku_idx ON indexed_products (sku)`,
	`CREATE TABLE IF NOT EXISTS departments (
		id {{pk}},
		name VARCHAR(100) NOT NULL,
		code VARCHAR(10) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS employees (
		id {{pk}},
		first_name VARCHAR(50) NOT NULL,
		last_name VARCHAR(50) NOT NULL,
		email VARCHAR(254) NOT NULL UNIQUE,
		department_id BIGINT NOT NULL REFERENCES departments(id) ON DELETE CASCADE,
		manager_id BIGINT NULL REFERENCES employees(id) ON DELETE SET NULL,
		hire_date DATE NOT NULL,
		salary {{money}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id {{pk}},
		name VARCHAR(100) NOT NULL,
		code VARCHAR(20) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		start_date DATE NOT NULL,
		end_date DATE NULL,
		budget {{money}} NOT NULL,
		department_id BIGINT NOT NULL REFERENCES departments(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS project_assignments (
		id {{pk}},
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		employee_id BIGINT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		role VARCHAR(50) NOT NULL,
		assignment_date DATE NOT NULL,
		hours_allocated INTEGER NOT NULL DEFAULT 0 CHECK (hours_allocated >= 0),
		UNIQUE (project_id, employee_id, role)
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id {{pk}},
		title VARCHAR(200) NOT NULL,
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		uploaded_by_id BIGINT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		upload_date {{ts}} NOT NULL,
		file_type VARCHAR(20) NOT NULL,
		content {{blob}} NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id {{pk}},
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		assigned_to_id BIGINT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		created_by_id BIGINT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		parent_task_id BIGINT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		priority VARCHAR(10) NOT NULL DEFAULT 'MEDIUM',
		status VARCHAR(15) NOT NULL DEFAULT 'TODO',
		created_date {{ts}} NOT NULL,
		due_date DATE NULL,
		estimated_hours INTEGER NOT NULL DEFAULT 0 CHECK (estimated_hours >= 0)
	)`,
}

func (d Dialect) ddl() []string {
	var r *strings.Replacer
	switch d {
	case Postgres:
		r = strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{money}}", "NUMERIC(12, 2)",
			"{{blob}}", "BYTEA",
			// bytewise ordering keeps the sku prefix range exact
			"{{sku}}", `VARCHAR(50) COLLATE "C"`,
			"{{ts}}", "TIMESTAMP",
		)
	default:
		r = strings.NewReplacer(
			"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{money}}", "REAL",
			"{{blob}}", "BLOB",
			"{{sku}}", "VARCHAR(50)",
			"{{ts}}", "TIMESTAMP",
		)
	}
	out := make([]string, 0, len(schema))
	for _, stmt := range schema {
		out = append(out, r.Replace(stmt))
	}
	return out
}

// tablesInDeleteOrder lists tables children first.
var tablesInDeleteOrder = []string{
	"tasks",
	"documents",
	"project_assignments",
	"projects",
	"employees",
	"departments",
	"indexed_products",
	"products",
	"books",
	"authors",
}
