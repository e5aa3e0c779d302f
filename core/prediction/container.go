package prediction

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

// Client is the slice of the API client the prediction container needs.
type Client interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, in, out interface{}) error
}

// State is a point-in-time snapshot of the prediction cache.
type State struct {
	Predictions []Record
	Current     *Record
	Stats       Stats
	Loading     bool
	Err         string
}

// Container holds the prediction history, the most recent result and
// the aggregate stats. Submitting never touches the history; history is
// refreshed only via an explicit fetch.
type Container struct {
	api      Client
	validate *validator.Validate

	mu          sync.RWMutex
	predictions []Record
	current     *Record
	stats       Stats
	loading     bool
	err         string
}

func NewContainer(api Client, validate *validator.Validate) *Container {
	return &Container{
		api:      api,
		validate: validate,
		stats:    Stats{PerformanceDistribution: map[string]int{}},
	}
}

func (c *Container) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := State{
		Predictions: append([]Record(nil), c.predictions...),
		Stats:       c.stats,
		Loading:     c.loading,
		Err:         c.err,
	}
	st.Stats.PerformanceDistribution = make(map[string]int, len(c.stats.PerformanceDistribution))
	for label, n := range c.stats.PerformanceDistribution {
		st.Stats.PerformanceDistribution[label] = n
	}
	if c.current != nil {
		rec := *c.current
		st.Current = &rec
	}
	return st
}

// ClearCurrent drops the latest result; used when re-entering the form
// so a stale result is not shown.
func (c *Container) ClearCurrent() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// ClearError resets the error message once it has been displayed.
func (c *Container) ClearError() {
	c.mu.Lock()
	c.err = ""
	c.mu.Unlock()
}

// Submit sends the form and stores the full response (including the
// server-echoed input_data) as the current prediction, replacing any
// prior one.
func (c *Container) Submit(ctx context.Context, in Input) (*Record, error) {
	if err := in.Validate(c.validate); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.loading = true
	c.err = ""
	c.mu.Unlock()

	var rec Record
	if err := c.api.Post(ctx, "/predict", in, &rec); err != nil {
		c.mu.Lock()
		c.loading = false
		c.err = core.ErrorMessage(err)
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.current = &rec
	c.loading = false
	c.mu.Unlock()

	out := rec
	return &out, nil
}

// FetchHistory replaces the whole predictions list with the server's
// collection; no incremental merge, no pagination.
func (c *Container) FetchHistory(ctx context.Context) error {
	var resp struct {
		Predictions []Record `json:"predictions"`
	}
	if err := c.api.Get(ctx, "/user/predictions", &resp); err != nil {
		c.mu.Lock()
		c.err = core.ErrorMessage(err)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.predictions = resp.Predictions
	c.mu.Unlock()
	return nil
}

// FetchStats replaces the stats snapshot wholesale.
func (c *Container) FetchStats(ctx context.Context) error {
	var stats Stats
	if err := c.api.Get(ctx, "/stats", &stats); err != nil {
		c.mu.Lock()
		c.err = core.ErrorMessage(err)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if stats.PerformanceDistribution == nil {
		stats.PerformanceDistribution = map[string]int{}
	}
	c.stats = stats
	c.mu.Unlock()
	return nil
}
