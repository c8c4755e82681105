package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Finding is the API's answer for a resolved finding UUID.
type Finding struct {
	Label   string `json:"label"`
	Finding struct {
		ID     string   `json:"id"`
		Kind   string   `json:"kind"`
		Rank   int      `json:"rank"`
		SQL    string   `json:"sql"`
		Count  int      `json:"count"`
		TimeMs float64  `json:"time_ms"`
		Stack  []string `json:"stack"`
	} `json:"finding"`
	Request struct {
		ID     string `json:"id"`
		Method string `json:"method"`
		Path   string `json:"path"`
	} `json:"request"`
}

// Resolver looks finding UUIDs up through the API's profile endpoint.
type Resolver struct {
	BaseURL string
	Client  *http.Client
}

// Resolve fetches the stored finding for id.
func (r *Resolver) Resolve(ctx context.Context, id string) (Finding, error) {
	var f Finding
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/api/profiles/"+url.PathEscape(id), nil)
	if err != nil {
		return f, err
	}
	req.Header.Set("Accept", "application/json")
	cli := r.Client
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := cli.Do(req)
	if err != nil {
		return f, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return f, fmt.Errorf("resolve %s status %s", id, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return f, fmt.Errorf("decode finding %s: %w", id, err)
	}
	return f, nil
}
