// Package loadtest drives weighted traffic at the demo API and aggregates
// the SQL profile headers it returns.
package loadtest

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Task is one weighted endpoint of a scenario.
type Task struct {
	Name   string `yaml:"name" json:"name"`
	Method string `yaml:"method" json:"method"`
	Path   string `yaml:"path" json:"path"`
	Weight int    `yaml:"weight" json:"weight"`
}

// Scenario describes a load-test run.
type Scenario struct {
	Name           string        `yaml:"name" json:"name"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	Rate           int           `yaml:"rate" json:"rate"`
	Duration       time.Duration `yaml:"duration" json:"duration"`
	Workers        int           `yaml:"workers" json:"workers"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	ReportInterval time.Duration `yaml:"report_interval" json:"report_interval"`
	HeaderPrefix   string        `yaml:"header_prefix" json:"header_prefix"`
	ResolveLimit   int           `yaml:"resolve_limit" json:"resolve_limit"`
	Tasks          []Task        `yaml:"tasks" json:"tasks"`
}

// DefaultTasks hits plain CRUD lightly and every query demonstration three
// times as often.
var DefaultTasks = []Task{
	{Name: "authors", Path: "/api/authors/", Weight: 1},
	{Name: "books", Path: "/api/books/", Weight: 2},
	{Name: "n-plus-one", Path: "/api/examples/n-plus-one/", Weight: 3},
	{Name: "optimized", Path: "/api/examples/optimized/", Weight: 3},
	{Name: "expensive", Path: "/api/examples/expensive/", Weight: 3},
	{Name: "complex-nested", Path: "/api/examples/complex-nested-queries/", Weight: 3},
	{Name: "department-analysis", Path: "/api/examples/department-performance-analysis/", Weight: 3},
}

// DefaultScenario targets a local API at a gentle rate.
func DefaultScenario() Scenario {
	return withDefaults(Scenario{})
}

func withDefaults(s Scenario) Scenario {
	if s.Name == "" {
		s.Name = "default"
	}
	if s.BaseURL == "" {
		s.BaseURL = "http://localhost:8000"
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.Rate <= 0 {
		s.Rate = 10
	}
	if s.Duration <= 0 {
		s.Duration = 30 * time.Second
	}
	if s.Workers <= 0 {
		s.Workers = 10
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.ReportInterval <= 0 {
		s.ReportInterval = 10 * time.Second
	}
	if s.HeaderPrefix == "" {
		s.HeaderPrefix = "X-Sql-Profile"
	}
	if len(s.Tasks) == 0 {
		s.Tasks = append([]Task(nil), DefaultTasks...)
	}
	for i := range s.Tasks {
		if s.Tasks[i].Method == "" {
			s.Tasks[i].Method = http.MethodGet
		}
		s.Tasks[i].Method = strings.ToUpper(s.Tasks[i].Method)
		if s.Tasks[i].Name == "" {
			s.Tasks[i].Name = s.Tasks[i].Path
		}
	}
	return s
}

// Validate rejects scenarios the runner cannot execute.
func (s Scenario) Validate() error {
	var errs []error
	if !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("base_url %q must be http(s)", s.BaseURL))
	}
	total := 0
	for _, t := range s.Tasks {
		if !strings.HasPrefix(t.Path, "/") {
			errs = append(errs, fmt.Errorf("task %s: path must start with /", t.Name))
		}
		if t.Weight < 0 {
			errs = append(errs, fmt.Errorf("task %s: negative weight", t.Name))
		}
		total += t.Weight
	}
	if total == 0 {
		errs = append(errs, errors.New("at least one task needs a positive weight"))
	}
	return errors.Join(errs...)
}

// LoadScenario reads a YAML scenario and fills unset fields with defaults.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse %s: %w", path, err)
	}
	s = withDefaults(s)
	if err := s.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
