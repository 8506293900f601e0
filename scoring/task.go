package scoring

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ieee0824/translate-go/internal/logger"
	"github.com/ieee0824/translate-go/internal/metrics"
	"github.com/ieee0824/translate-go/language"
)

// ProbabilitySource is a domain-adaptive n-gram model. Implementations must
// be safe for concurrent reads; everything task-specific lives in Task.
type ProbabilitySource interface {
	Order() int
	Index(word string) language.WordID
	ComputeProbability(word language.WordID, history language.HistoryKey, ctx language.Context) (float64, language.HistoryKey)
	MakeEmptyHistoryKey() language.HistoryKey
	MakeHistoryKey(words []language.WordID) language.HistoryKey
	NormalizeContext(ctx language.Context) language.Context
	IsOOV(ctx language.Context, word language.WordID) bool
}

// Task holds the scoring resources of one translation request: its
// normalized adaptation context, a bounded lookup cache and the arena that
// owns the language model states of its hypotheses. A Task is used by one
// goroutine at a time and must be closed with EndTask.
type Task struct {
	ID uuid.UUID

	src     ProbabilitySource
	context language.Context
	cache   *lookupCache
	states  *Pool[lmState]
	log     *log.Logger
	ended   bool
}

// TaskOption configures BeginTask.
type TaskOption func(*taskOptions)

type taskOptions struct {
	cacheSize int
	logger    *log.Logger
}

// WithCacheSize sets the capacity of the lookup cache. 0 disables caching.
func WithCacheSize(n int) TaskOption {
	return func(o *taskOptions) { o.cacheSize = n }
}

// WithLogger sets the logger of the task.
func WithLogger(l *log.Logger) TaskOption {
	return func(o *taskOptions) { o.logger = l }
}

// BeginTask sets up the per-task resources. src may be nil when no language
// model is configured; the context is then only normalized to sum to one.
func BeginTask(src ProbabilitySource, ctx language.Context, opts ...TaskOption) *Task {
	o := taskOptions{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.New("task")
	}

	t := &Task{
		ID:     uuid.New(),
		src:    src,
		states: NewPool[lmState](defaultSlabSize),
	}
	if src != nil {
		t.context = src.NormalizeContext(ctx)
		t.cache = newLookupCache(o.cacheSize)
	} else {
		t.context = normalizeWeights(ctx)
	}
	t.log = o.logger.With("task", t.ID.String())
	metrics.ActiveTasks.Inc()
	t.log.Debug("begin task", "domains", len(t.context), "cache", o.cacheSize)
	return t
}

// Context returns the normalized adaptation context. It is empty when the
// request carried no usable domain weights.
func (t *Task) Context() language.Context {
	t.mustBeActive()
	return t.context
}

// Source returns the probability source the task was begun for.
func (t *Task) Source() ProbabilitySource { return t.src }

// Logger returns the task-scoped logger.
func (t *Task) Logger() *log.Logger { return t.log }

// Lookup returns a cached probability without consulting the source.
func (t *Task) Lookup(history language.HistoryKey, word language.WordID) (float64, language.HistoryKey, bool) {
	t.mustBeActive()
	e, ok := t.cache.get(lookupKey{history: history, word: word})
	return e.logProb, e.next, ok
}

// Probability returns log P(word | history) under the task context and the
// extended history. Results are memoized in the task cache; a cache hit is
// indistinguishable from a source call.
func (t *Task) Probability(word language.WordID, history language.HistoryKey) (float64, language.HistoryKey) {
	t.mustBeActive()
	key := lookupKey{history: history, word: word}
	if e, ok := t.cache.get(key); ok {
		metrics.LMLookups.WithLabelValues("hit").Inc()
		return e.logProb, e.next
	}
	metrics.LMLookups.WithLabelValues("miss").Inc()
	lp, next := t.src.ComputeProbability(word, history, t.context)
	t.cache.put(lookupEntry{key: key, logProb: lp, next: next})
	return lp, next
}

// IsOOV reports whether word is unknown under the task context.
func (t *Task) IsOOV(word language.WordID) bool {
	t.mustBeActive()
	return t.src.IsOOV(t.context, word)
}

// CacheLen returns the number of cached lookups.
func (t *Task) CacheLen() int { return t.cache.len() }

// StatesAllocated returns the number of language model states created by
// the task.
func (t *Task) StatesAllocated() int {
	if t.states == nil {
		return 0
	}
	return t.states.Len()
}

func (t *Task) newState(h language.HistoryKey) *lmState {
	t.mustBeActive()
	s := t.states.Get()
	s.history = h
	return s
}

// EndTask releases the cache and every state created by the task. Calling
// it again is a no-op; any other use of the task afterwards panics.
func (t *Task) EndTask() {
	if t.ended {
		return
	}
	t.log.Debug("end task", "states", t.states.Len(), "cached", t.cache.len())
	t.ended = true
	t.states.Reset()
	t.states = nil
	t.cache = nil
	metrics.ActiveTasks.Dec()
}

// Ended reports whether EndTask has been called.
func (t *Task) Ended() bool { return t.ended }

func (t *Task) mustBeActive() {
	if t.ended {
		panic(fmt.Sprintf("scoring: task %s used after EndTask", t.ID))
	}
}

func (t *Task) mustUse(src ProbabilitySource) {
	t.mustBeActive()
	if t.src != src {
		panic(fmt.Sprintf("scoring: task %s was begun for a different probability source", t.ID))
	}
}

func normalizeWeights(ctx language.Context) language.Context {
	out := make(language.Context, 0, len(ctx))
	sum := 0.0
	for _, cw := range ctx {
		if cw.Weight > 0 {
			out = append(out, cw)
			sum += cw.Weight
		}
	}
	if sum == 0 {
		return nil
	}
	for i := range out {
		out[i].Weight /= sum
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}
