package depgraph

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]domain.Dependency
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]domain.Dependency)}
}

func (c *memCache) Get(_ context.Context, a, b string) (domain.Dependency, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ka, kb := domain.PairKey(a, b)
	dep, ok := c.entries[ka+":"+kb]
	if !ok {
		return domain.Dependency{}, domain.ErrNoDependency
	}
	return dep, nil
}

func (c *memCache) Set(_ context.Context, dep domain.Dependency, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ka, kb := domain.PairKey(dep.SourceMarketID, dep.TargetMarketID)
	c.entries[ka+":"+kb] = dep
	return nil
}

func (c *memCache) Has(_ context.Context, a, b string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ka, kb := domain.PairKey(a, b)
	_, ok := c.entries[ka+":"+kb]
	return ok, nil
}

type fakeClassifier struct {
	calls   int
	results []domain.Dependency
	err     error
}

func (f *fakeClassifier) Classify(_ context.Context, pairs [][2]string) ([]domain.Dependency, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestGetDependencies_SkipsIndependentAndMisses(t *testing.T) {
	cache := newMemCache()
	_ = cache.Set(context.Background(), domain.Dependency{SourceMarketID: "a", TargetMarketID: "b", Relation: domain.RelationMutex}, time.Hour)
	_ = cache.Set(context.Background(), domain.Dependency{SourceMarketID: "b", TargetMarketID: "c", Relation: domain.RelationIndependent}, time.Hour)

	g := New(cache, &fakeClassifier{}, nil)
	deps := g.GetDependencies(context.Background(), []string{"a", "b", "c"})

	require.Len(t, deps, 1)
	assert.Equal(t, domain.RelationMutex, deps[0].Relation)
}

func TestStartAsyncDiscovery_StoresResultsAndClearsFlag(t *testing.T) {
	cache := newMemCache()
	classifier := &fakeClassifier{results: []domain.Dependency{
		{SourceMarketID: "a", TargetMarketID: "b", Relation: domain.RelationMutex, Confidence: 0.9},
	}}
	g := New(cache, classifier, nil)

	g.StartAsyncDiscovery(context.Background(), []string{"a", "b"})

	assert.Eventually(t, func() bool {
		has, _ := cache.Has(context.Background(), "a", "b")
		return has && !g.IsDiscovering()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, classifier.calls)
}

func TestStartAsyncDiscovery_SingleFlight(t *testing.T) {
	cache := newMemCache()
	classifier := &fakeClassifier{results: nil}
	g := New(cache, classifier, nil)
	g.discovering.Store(true)

	g.StartAsyncDiscovery(context.Background(), []string{"a", "b"})

	assert.Equal(t, 0, classifier.calls)
}

func TestStartAsyncDiscovery_NoCandidatesLeavesFlagClear(t *testing.T) {
	cache := newMemCache()
	_ = cache.Set(context.Background(), domain.Dependency{SourceMarketID: "a", TargetMarketID: "b", Relation: domain.RelationIndependent}, time.Hour)
	classifier := &fakeClassifier{}
	g := New(cache, classifier, nil)

	g.StartAsyncDiscovery(context.Background(), []string{"a", "b"})

	assert.False(t, g.IsDiscovering())
	assert.Equal(t, 0, classifier.calls)
}

func TestSelectCandidates_PrioritizesSameCategoryPairs(t *testing.T) {
	cache := newMemCache()
	g := New(cache, &fakeClassifier{}, nil)
	g.batchSize = 1
	g.SetCategories(map[string]string{
		"a": "politics",
		"b": "sports",
		"c": "politics",
	})

	candidates := g.selectCandidates(context.Background(), []string{"a", "b", "c"})

	require.Len(t, candidates, 1)
	assert.ElementsMatch(t, []string{"a", "c"}, []string{candidates[0][0], candidates[0][1]})
}

func TestSelectCandidates_FillsRemainderWithCrossCategoryPairsWhenRoom(t *testing.T) {
	cache := newMemCache()
	g := New(cache, &fakeClassifier{}, nil)
	g.SetCategories(map[string]string{"a": "politics", "c": "politics"})

	candidates := g.selectCandidates(context.Background(), []string{"a", "b", "c"})

	assert.Len(t, candidates, 3) // a-b, a-c, b-c all uncached
}

func TestRunDiscovery_MalformedRowsDropped(t *testing.T) {
	cache := newMemCache()
	classifier := &fakeClassifier{results: []domain.Dependency{
		{SourceMarketID: "", TargetMarketID: "b", Relation: domain.RelationMutex},
		{SourceMarketID: "a", TargetMarketID: "b", Relation: "bogus"},
		{SourceMarketID: "a", TargetMarketID: "c", Relation: domain.RelationMutex},
	}}
	g := New(cache, classifier, nil)

	g.runDiscovery(context.Background(), [][2]string{{"a", "b"}, {"a", "c"}})

	hasAB, _ := cache.Has(context.Background(), "a", "b")
	hasAC, _ := cache.Has(context.Background(), "a", "c")
	assert.False(t, hasAB)
	assert.True(t, hasAC)
}
