package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

// Fixture is one YAML fixture file.
type Fixture struct {
	Authors  []AuthorFixture  `yaml:"authors"`
	Products []ProductFixture `yaml:"products"`
}

// AuthorFixture declares an author with their books.
type AuthorFixture struct {
	Name  string        `yaml:"name"`
	Books []BookFixture `yaml:"books"`
}

type BookFixture struct {
	Title           string `yaml:"title"`
	PublicationYear int    `yaml:"publication_year"`
}

// ProductFixture is written to the tables named by Tables (both when empty).
type ProductFixture struct {
	Name        string   `yaml:"name"`
	SKU         string   `yaml:"sku"`
	Price       float64  `yaml:"price"`
	Description string   `yaml:"description"`
	Tables      []string `yaml:"tables"`
}

// FixtureResult captures fixture loading stats.
type FixtureResult struct {
	Files   int      `json:"files"`
	Loaded  int      `json:"loaded"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// NormalizeAuthor trims names and titles and drops blank books.
func NormalizeAuthor(a AuthorFixture) AuthorFixture {
	a.Name = strings.TrimSpace(a.Name)
	var books []BookFixture
	for _, b := range a.Books {
		b.Title = strings.TrimSpace(b.Title)
		if b.Title == "" && b.PublicationYear == 0 {
			continue
		}
		books = append(books, b)
	}
	a.Books = books
	return a
}

// ValidateAuthor returns validation errors for an author fixture.
func ValidateAuthor(a AuthorFixture, maxYear int) []string {
	var errs []string
	if a.Name == "" {
		errs = append(errs, "name required")
	}
	for i, b := range a.Books {
		if b.Title == "" {
			errs = append(errs, fmt.Sprintf("books[%d]: title required", i))
		}
		if b.PublicationYear < 1 || b.PublicationYear > maxYear {
			errs = append(errs, fmt.Sprintf("books[%d]: publication_year must be 1..%d", i, maxYear))
		}
	}
	return errs
}

// NormalizeProduct trims fields, upper-cases the SKU and resolves tables.
func NormalizeProduct(p ProductFixture) ProductFixture {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
	p.Description = strings.TrimSpace(p.Description)
	var tables []string
	for _, t := range p.Tables {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tables = append(tables, t)
		}
	}
	if len(tables) == 0 {
		tables = []string{string(store.Products), string(store.IndexedProducts)}
	}
	p.Tables = tables
	return p
}

// ValidateProduct returns validation errors for a product fixture.
func ValidateProduct(p ProductFixture) []string {
	var errs []string
	if p.Name == "" {
		errs = append(errs, "name required")
	}
	if p.SKU == "" {
		errs = append(errs, "sku required")
	}
	for _, r := range p.SKU {
		if r < 0x21 || r > 0x7e {
			errs = append(errs, "sku must be printable ascii")
			break
		}
	}
	if p.Price < 0 {
		errs = append(errs, "price must not be negative")
	}
	for _, t := range p.Tables {
		switch store.ProductTable(t) {
		case store.Products, store.IndexedProducts:
		default:
			errs = append(errs, fmt.Sprintf("unknown table %q", t))
		}
	}
	return errs
}

// LoadFixturesDir loads every .yaml/.yml file in dir. Invalid records are
// skipped and reported per file; a missing directory is not an error.
func LoadFixturesDir(ctx context.Context, st *store.Store, dir string) (FixtureResult, error) {
	var res FixtureResult
	if st == nil || dir == "" {
		return res, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, err
	}
	if !info.IsDir() {
		return res, fmt.Errorf("fixtures path is not a directory: %s", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, err
	}
	maxYear := time.Now().Year() + 1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		res.Files++
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		var fx Fixture
		if err := yaml.Unmarshal(data, &fx); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		loadAuthors(ctx, st, entry.Name(), fx.Authors, maxYear, &res)
		loadProducts(ctx, st, entry.Name(), fx.Products, &res)
	}
	return res, nil
}

func loadAuthors(ctx context.Context, st *store.Store, file string, authors []AuthorFixture, maxYear int, res *FixtureResult) {
	for _, a := range authors {
		a = NormalizeAuthor(a)
		if errs := ValidateAuthor(a, maxYear); len(errs) > 0 {
			label := a.Name
			if label == "" {
				label = "unnamed-author"
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s:%s: %s", file, label, strings.Join(errs, "; ")))
			res.Skipped++
			continue
		}
		author, err := st.CreateAuthor(ctx, a.Name)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s:%s: %v", file, a.Name, err))
			continue
		}
		res.Loaded++
		for _, b := range a.Books {
			if _, err := st.CreateBook(ctx, store.Book{Title: b.Title, AuthorID: author.ID, PublicationYear: b.PublicationYear}); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s:%s: %v", file, b.Title, err))
				continue
			}
			res.Loaded++
		}
	}
}

func loadProducts(ctx context.Context, st *store.Store, file string, products []ProductFixture, res *FixtureResult) {
	for _, p := range products {
		p = NormalizeProduct(p)
		if errs := ValidateProduct(p); len(errs) > 0 {
			label := p.SKU
			if label == "" {
				label = "unknown-sku"
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s:%s: %s", file, label, strings.Join(errs, "; ")))
			res.Skipped++
			continue
		}
		for _, t := range p.Tables {
			row := store.Product{Name: p.Name, SKU: p.SKU, Price: p.Price, Description: p.Description}
			if _, err := st.CreateProduct(ctx, store.ProductTable(t), row); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s:%s: %v", file, p.SKU, err))
				continue
			}
			res.Loaded++
		}
	}
}
