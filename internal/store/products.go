package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPrefix rejects sku prefixes the range lookup cannot express.
var ErrInvalidPrefix = errors.New("sku prefix must be 1-50 printable ASCII characters")

// ValidSKUPrefix checks prefix before it is turned into a range.
func ValidSKUPrefix(prefix string) error {
	if prefix == "" || len(prefix) > 50 {
		return ErrInvalidPrefix
	}
	for i := 0; i < len(prefix); i++ {
		if prefix[i] < 0x21 || prefix[i] > 0x7e {
			return ErrInvalidPrefix
		}
	}
	return nil
}

func (t ProductTable) valid() error {
	switch t {
	case Products, IndexedProducts:
		return nil
	default:
		return fmt.Errorf("unknown product table %q", t)
	}
}

func scanProduct(sc scanner) (Product, error) {
	var p Product
	err := sc.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Description)
	return p, err
}

// CreateProduct inserts into the chosen product table.
func (s *Store) CreateProduct(ctx context.Context, table ProductTable, p Product) (Product, error) {
	if err := table.valid(); err != nil {
		return Product{}, err
	}
	id, err := s.insertID(ctx,
		"INSERT INTO "+string(table)+" (name, sku, price, description) VALUES ($1, $2, $3, $4)",
		p.Name, p.SKU, p.Price, p.Description)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	p.ID = id
	return p, nil
}

// skuPrefixQuery expresses "sku starts with prefix" as a range so a b-tree
// index on sku is usable in both dialects.
func skuPrefixQuery(table ProductTable) string {
	return "SELECT id, name, sku, price, description FROM " + string(table) +
		" WHERE sku >= $1 AND sku < $2 ORDER BY sku"
}

// prefixUpperBound is the smallest string greater than every string with
// the given prefix. Prefixes are printable ASCII (see ValidSKUPrefix) and sku
// columns compare bytewise, so bumping the last byte below 0x7e is enough.
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0x7e {
			b[i]++
			return string(b[:i+1])
		}
	}
	return prefix + "~"
}

// ProductsBySKUPrefix finds products whose sku starts with prefix.
func (s *Store) ProductsBySKUPrefix(ctx context.Context, table ProductTable, prefix string) ([]Product, error) {
	if err := table.valid(); err != nil {
		return nil, err
	}
	if err := ValidSKUPrefix(prefix); err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, skuPrefixQuery(table), prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProduct)
}

// ExplainSKUPrefix returns the database's plan for ProductsBySKUPrefix.
func (s *Store) ExplainSKUPrefix(ctx context.Context, table ProductTable, prefix string) ([]string, error) {
	if err := table.valid(); err != nil {
		return nil, err
	}
	if err := ValidSKUPrefix(prefix); err != nil {
		return nil, err
	}
	explain := "EXPLAIN "
	if s.dialect == SQLite {
		explain = "EXPLAIN QUERY PLAN "
	}
	rows, err := s.query(ctx, explain+skuPrefixQuery(table), prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var plan []string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// postgres yields one text column; sqlite's detail is the last one.
		plan = append(plan, strings.TrimSpace(fmt.Sprint(asText(vals[len(vals)-1]))))
	}
	return plan, rows.Err()
}

func asText(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// CountProducts counts rows in the chosen product table.
func (s *Store) CountProducts(ctx context.Context, table ProductTable) (int, error) {
	if err := table.valid(); err != nil {
		return 0, err
	}
	var n int
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM "+string(table)).Scan(&n)
	return n, err
}
