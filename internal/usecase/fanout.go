package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/broadcast"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/metrics"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
)

// Stale-result stage label values
const (
	stageRecognition    = "recognition"
	stageRecommendation = "recommendation"
)

// FanoutConfig tunes the per-item recommendation fetches
type FanoutConfig struct {
	MaxConcurrency int
	FetchTimeout   time.Duration
	MinSimilarity  float64
}

// DefaultFanoutConfig returns sensible defaults
func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		MaxConcurrency: 8,
		FetchTimeout:   30 * time.Second,
		MinSimilarity:  0,
	}
}

// Fanout fetches recommendations for every item of a grocery list
// concurrently and merges each result into the published map as it arrives.
// Results from a superseded cycle are discarded.
type Fanout struct {
	recommender domain.Recommender
	gen         *Generation
	notes       *notifier
	cfg         FanoutConfig
	log         *logger.Logger

	mu    sync.Mutex
	cycle uint64
	names map[string]struct{}
	recs  domain.RecommendationMap
	out   *broadcast.Broadcaster[domain.RecommendationMap]

	// waitMu keeps wg.Add from racing a running wg.Wait
	waitMu sync.RWMutex
	wg     sync.WaitGroup
}

// NewFanout creates a Fanout. gen is shared with whoever starts cycles.
func NewFanout(recommender domain.Recommender, gen *Generation, cfg FanoutConfig, log *logger.Logger) *Fanout {
	return newFanout(recommender, gen, newNotifier(1), cfg, log)
}

func newFanout(recommender domain.Recommender, gen *Generation, notes *notifier, cfg FanoutConfig, log *logger.Logger) *Fanout {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	empty := domain.RecommendationMap{}
	return &Fanout{
		recommender: recommender,
		gen:         gen,
		notes:       notes,
		cfg:         cfg,
		log:         log.With("component", "Fanout"),
		names:       map[string]struct{}{},
		recs:        empty,
		out:         broadcast.New(empty),
	}
}

// Updates returns the recommendation map stream
func (f *Fanout) Updates() *broadcast.Broadcaster[domain.RecommendationMap] {
	return f.out
}

// Failures returns the per-item failure notification stream
func (f *Fanout) Failures() *broadcast.Broadcaster[domain.Notification] {
	return f.notes.out
}

// FetchAll starts a new cycle for items and returns its token. It does not
// wait for the fetches; use Wait for that.
func (f *Fanout) FetchAll(ctx context.Context, items []domain.GroceryItem) uint64 {
	gen := f.gen.Advance()
	names, err := f.begin(gen, items)
	if err == nil {
		f.launch(ctx, gen, names)
	}
	return gen
}

// Refetch retries the fetch for one item of the current cycle
func (f *Fanout) Refetch(ctx context.Context, itemName string) error {
	f.mu.Lock()
	gen := f.cycle
	_, known := f.names[itemName]
	f.mu.Unlock()

	if !f.gen.IsCurrent(gen) {
		return fmt.Errorf("refetch %q: %w", itemName, domain.ErrStaleGeneration)
	}
	if !known {
		return &domain.ValidationError{Field: "item", Reason: fmt.Sprintf("%q is not on the current grocery list", itemName)}
	}

	f.launch(ctx, gen, []string{itemName})
	return nil
}

// Wait blocks until every launched fetch has finished. Launches made while
// Wait is draining block until it returns.
func (f *Fanout) Wait() {
	f.waitMu.Lock()
	defer f.waitMu.Unlock()
	f.wg.Wait()
}

// Close ends the recommendation stream
func (f *Fanout) Close() {
	f.out.Close()
}

// begin resets the map for cycle gen and returns the distinct item names
// to fetch. It fails with ErrStaleGeneration if gen was already superseded.
func (f *Fanout) begin(gen uint64, items []domain.GroceryItem) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.gen.IsCurrent(gen) || gen < f.cycle {
		metrics.StaleResultsDiscarded.WithLabelValues(stageRecognition).Inc()
		return nil, domain.ErrStaleGeneration
	}

	names := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.Name]; dup {
			continue
		}
		seen[item.Name] = struct{}{}
		names = append(names, item.Name)
	}

	f.cycle = gen
	f.names = seen
	f.recs = domain.RecommendationMap{}
	f.out.Publish(f.recs)
	return names, nil
}

// launch runs the fetches for names in the background, at most
// MaxConcurrency at a time. One failing item never cancels its siblings.
func (f *Fanout) launch(ctx context.Context, gen uint64, names []string) {
	if len(names) == 0 {
		return
	}

	f.waitMu.RLock()
	f.wg.Add(1)
	f.waitMu.RUnlock()
	go func() {
		defer f.wg.Done()

		var g errgroup.Group
		g.SetLimit(f.cfg.MaxConcurrency)
		for _, name := range names {
			g.Go(func() error {
				f.fetchOne(ctx, gen, name)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (f *Fanout) fetchOne(ctx context.Context, gen uint64, name string) {
	if !f.gen.IsCurrent(gen) {
		metrics.StaleResultsDiscarded.WithLabelValues(stageRecommendation).Inc()
		return
	}

	fetchCtx := ctx
	if f.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, f.cfg.FetchTimeout)
		defer cancel()
	}

	recs, err := f.recommender.FetchRecommendations(fetchCtx, name)
	if err != nil {
		if ctx.Err() != nil || !f.isCurrent(gen) {
			metrics.StaleResultsDiscarded.WithLabelValues(stageRecommendation).Inc()
			return
		}
		metrics.RecommendationFetchesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		f.log.Warn("recommendation fetch failed", "cycle", gen, "item", name, "error", err)
		f.notes.failure(fmt.Sprintf("%s for %s", msgRecommendationsFailed, name), name, gen)
		return
	}

	if !f.merge(gen, name, rankRecommendations(recs, f.cfg.MinSimilarity)) {
		metrics.StaleResultsDiscarded.WithLabelValues(stageRecommendation).Inc()
		f.log.Debug("discarded stale recommendations", "cycle", gen, "item", name)
		return
	}
	metrics.RecommendationFetchesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
}

// merge folds one item's result into the map if gen is still current
func (f *Fanout) merge(gen uint64, name string, recs []domain.ProductRecommendation) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.cycle || !f.gen.IsCurrent(gen) {
		return false
	}
	f.recs = f.recs.With(name, recs)
	f.out.Publish(f.recs)
	return true
}

func (f *Fanout) isCurrent(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen == f.cycle && f.gen.IsCurrent(gen)
}
