package loadtest

import (
	"errors"
	"math/rand"
	"sync"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

// NewWeightedTargeter picks a task per request with probability proportional
// to its weight. Tasks with zero weight are never picked.
func NewWeightedTargeter(baseURL string, tasks []Task, rng *rand.Rand) (vegeta.Targeter, error) {
	var picks []Task
	var cumulative []int
	total := 0
	for _, t := range tasks {
		if t.Weight <= 0 {
			continue
		}
		total += t.Weight
		picks = append(picks, t)
		cumulative = append(cumulative, total)
	}
	if total == 0 {
		return nil, errors.New("no weighted tasks")
	}
	var mu sync.Mutex
	return func(tgt *vegeta.Target) error {
		if tgt == nil {
			return vegeta.ErrNilTarget
		}
		mu.Lock()
		n := rng.Intn(total)
		mu.Unlock()
		i := 0
		for cumulative[i] <= n {
			i++
		}
		t := picks[i]
		*tgt = vegeta.Target{Method: t.Method, URL: baseURL + t.Path}
		return nil
	}, nil
}
