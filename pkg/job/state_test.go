package job

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umputun/profscout/pkg/domain"
)

func TestState(t *testing.T) {
	st := NewState([]domain.ScoreRecord{{URL: "a", Score: 10}, {URL: "b", Score: 50, Error: "boom"}, {URL: "a", Score: 99}})
	assert.Equal(t, 2, st.Len())
	assert.True(t, st.Has("a"))
	assert.False(t, st.Has("c"))
	assert.InDelta(t, 10.0, st.Records()[0].Score, 0.001, "first record of a key wins")

	pending := st.Pending([]domain.WorkItem{{Key: "c"}, {Key: "a"}, {Key: "d"}, {Key: "c"}})
	assert.Equal(t, []domain.WorkItem{{Key: "c"}, {Key: "d"}}, pending)

	next := st.With(domain.ScoreRecord{URL: "c", Score: 70}, domain.ScoreRecord{URL: "a", Score: 1})
	assert.Equal(t, 2, st.Len(), "original state untouched")
	assert.Equal(t, 3, next.Len())

	kept := next.WithoutFailed()
	assert.Equal(t, 2, kept.Len())
	assert.False(t, kept.Has("b"))

	sorted := next.Sorted(func(r domain.ScoreRecord) float64 { return r.Score })
	recs := sorted.Records()
	assert.Equal(t, []string{"c", "b", "a"}, []string{recs[0].URL, recs[1].URL, recs[2].URL})
	assert.Equal(t, "a", next.Records()[0].URL, "sorting returns a new state")
}
