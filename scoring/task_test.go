package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/translate-go/internal/logger"
	"github.com/ieee0824/translate-go/language"
	"github.com/ieee0824/translate-go/phrase"
)

func TestTask_CacheIsTransparent(t *testing.T) {
	target := phrase.Parse("she read a book by cher .")
	cuts := []int{0, 2, 4, 5, 7}

	var results [][]float64
	for _, size := range []int{0, 1, 5, 1000} {
		f := newFixture(t, LMConfig{})
		task := f.task(WithCacheSize(size))
		applied, _ := f.apply(task, target, cuts)
		applied = append(applied, f.lm.SentenceScore(task, target))
		results = append(results, applied)
		assert.LessOrEqual(t, task.CacheLen(), size)
		task.EndTask()
	}
	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
}

func TestTask_CacheHit(t *testing.T) {
	f := newFixture(t, LMConfig{})
	task := f.task(WithCacheSize(2))
	defer task.EndTask()

	h := f.src.MakeHistoryKey([]language.WordID{language.StartID})
	john := f.src.Index("john")

	_, _, ok := task.Lookup(h, john)
	assert.False(t, ok)

	lp, next := task.Probability(john, h)
	calls := len(f.src.words)
	lp2, next2 := task.Probability(john, h)
	assert.Equal(t, calls, len(f.src.words), "second lookup must be served from the cache")
	assert.Equal(t, lp, lp2)
	assert.Equal(t, next, next2)

	cached, cachedNext, ok := task.Lookup(h, john)
	require.True(t, ok)
	assert.Equal(t, lp, cached)
	assert.Equal(t, next, cachedNext)

	// two more distinct keys evict the least recently used one
	task.Probability(f.src.Index("mary"), h)
	task.Probability(f.src.Index("she"), h)
	_, _, ok = task.Lookup(h, john)
	assert.False(t, ok)
	assert.Equal(t, 2, task.CacheLen())
}

func TestTask_Context(t *testing.T) {
	bg := language.NewBuilder(2)
	bg.AddSentence([]string{"a", "b"})
	dom := language.NewBuilder(2)
	dom.AddSentence([]string{"a", "c"})
	vocab := language.NewVocabulary()
	m := language.NewInterpolatedModel(bg.Model(vocab), 0.5)
	require.NoError(t, m.AddDomain(3, dom.Model(vocab)))

	task := BeginTask(m, language.Context{{Domain: 9, Weight: 1}, {Domain: 3, Weight: 4}}, WithLogger(logger.Discard()))
	defer task.EndTask()
	assert.Equal(t, language.Context{{Domain: 3, Weight: 1}}, task.Context())

	empty := BeginTask(m, language.Context{{Domain: 9, Weight: 1}}, WithLogger(logger.Discard()))
	defer empty.EndTask()
	assert.Empty(t, empty.Context())

	plain := BeginTask(nil, language.Context{{Domain: 2, Weight: 3}, {Domain: 1, Weight: 1}, {Domain: 5, Weight: 0}}, WithLogger(logger.Discard()))
	defer plain.EndTask()
	assert.Equal(t, language.Context{{Domain: 1, Weight: 0.25}, {Domain: 2, Weight: 0.75}}, plain.Context())
}

func TestTask_EndTask(t *testing.T) {
	f := newFixture(t, LMConfig{})
	task := f.task()
	f.lm.BlankState(task)
	f.lm.BlankState(task)
	assert.Equal(t, 2, task.StatesAllocated())

	task.EndTask()
	assert.True(t, task.Ended())
	assert.NotPanics(t, task.EndTask)
	assert.Panics(t, func() { task.Context() })
	assert.Panics(t, func() { f.lm.BlankState(task) })
}

func TestPool(t *testing.T) {
	p := NewPool[lmState](4)
	var got []*lmState
	for i := 0; i < 10; i++ {
		s := p.Get()
		s.history = language.NewHistoryKey([]language.WordID{language.WordID(i)}, 1)
		got = append(got, s)
	}
	assert.Equal(t, 10, p.Len())
	// pointers stay valid across slab boundaries
	for i, s := range got {
		assert.Equal(t, []language.WordID{language.WordID(i)}, s.history.Words())
	}

	p.Reset()
	assert.Equal(t, 0, p.Len())
	s := p.Get()
	assert.Equal(t, 0, s.history.Len())
}
