package job

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/profscout/pkg/batch"
	"github.com/umputun/profscout/pkg/checkpoint"
	cmocks "github.com/umputun/profscout/pkg/checkpoint/mocks"
	"github.com/umputun/profscout/pkg/domain"
	"github.com/umputun/profscout/pkg/job/mocks"
)

// recorder counts operation calls per key
type recorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *recorder) hit(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[key]++
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]string, 0, len(r.calls))
	for k := range r.calls {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

func items(keys ...string) []domain.WorkItem {
	res := make([]domain.WorkItem, 0, len(keys))
	for i, k := range keys {
		res = append(res, domain.WorkItem{Key: k, Page: i/2 + 1})
	}
	return res
}

func extractionRunner(path string, rec *recorder, fail map[string]bool) *Runner[*domain.Profile, domain.ExtractionRecord] {
	return &Runner[*domain.Profile, domain.ExtractionRecord]{
		Name:   "extract",
		Store:  checkpoint.NewStore[domain.ExtractionRecord](&checkpoint.FileBackend{Path: path}),
		Config: Config{BatchSize: 2, Batch: batch.Config{Concurrency: 2}},
		Op: func(_ context.Context, item domain.WorkItem) (*domain.Profile, error) {
			rec.hit(item.Key)
			if fail[item.Key] {
				return nil, errors.New("navigation failed")
			}
			return &domain.Profile{Name: "name " + item.Key}, nil
		},
		Success: func(item domain.WorkItem, p *domain.Profile, attempts int) domain.ExtractionRecord {
			return domain.ExtractionRecord{URL: item.Key, Data: p, PageNumber: item.Page, Attempts: attempts}
		},
		Failure: domain.FailedExtraction,
	}
}

func loadFile(t *testing.T, path string) []domain.ExtractionRecord {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test file
	require.NoError(t, err)
	var res []domain.ExtractionRecord
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

func TestRunner_CheckpointCompleteness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	rec := &recorder{}
	r := extractionRunner(path, rec, map[string]bool{"c": true})
	obs := &mocks.ObserverMock{ItemDoneFunc: func(string, bool, int) {}, StateSavedFunc: func(string, int) {}}
	r.Observer = obs
	r.Config.Batch.Retry = batch.Retry{MaxRetries: 1}

	st, summary, err := r.Run(context.Background(), items("a", "b", "c", "d", "e", "f", "g"))
	require.NoError(t, err)

	assert.Equal(t, 7, st.Len())
	stored := loadFile(t, path)
	require.Len(t, stored, 7)
	keys := map[string]bool{}
	for _, s := range stored {
		assert.False(t, keys[s.URL], "duplicate %s", s.URL)
		keys[s.URL] = true
	}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		assert.True(t, keys[k], k)
	}

	failed := stored[2]
	assert.Equal(t, "c", failed.URL)
	assert.Equal(t, "navigation failed", failed.Error)
	assert.Nil(t, failed.Data)
	assert.Equal(t, 2, failed.Attempts)
	assert.Equal(t, 2, rec.calls["c"])

	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 7, summary.Processed)
	assert.Equal(t, 6, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 4, summary.Batches)
	assert.Equal(t, 1, summary.Pages[2].Failed)
	assert.Equal(t, 1, summary.Pages[2].Succeeded)
	assert.NotEmpty(t, summary.RunID)
	assert.Contains(t, summary.String(), "page 2: 1 ok, 1 failed")

	assert.Len(t, obs.ItemDoneCalls(), 7)
	saves := obs.StateSavedCalls()
	require.Len(t, saves, 5, "four batches and the final save")
	assert.Equal(t, 2, saves[0].Records)
	assert.Equal(t, 7, saves[4].Records)
}

func TestRunner_ProcessesOnlyDelta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"url":"a","data":{"name":"Alice","rating":4.5,"reviewCount":3,`+
		`"aboutText":"hi","extendedAbout":null,"avatar":null}}]`), 0o600))

	rec := &recorder{}
	_, summary, err := extractionRunner(path, rec, nil).Run(context.Background(), items("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, rec.keys())
	stored := loadFile(t, path)
	require.Len(t, stored, 2)
	assert.Equal(t, "Alice", stored[0].Data.Name)
	assert.Equal(t, "b", stored[1].URL)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Processed)
}

func TestRunner_CorruptCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte(`"{not valid json`), 0o600))

	rec := &recorder{}
	st, _, err := extractionRunner(path, rec, nil).Run(context.Background(), items("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, rec.keys())
	assert.Equal(t, 3, st.Len())
	assert.Len(t, loadFile(t, path), 3)
}

func TestRunner_ResumeAfterInterruption(t *testing.T) {
	all := items("1", "2", "3", "4", "5", "6")

	// uninterrupted reference run
	refPath := filepath.Join(t.TempDir(), "ref.json")
	_, _, err := extractionRunner(refPath, &recorder{}, map[string]bool{"5": true}).Run(context.Background(), all)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "profiles.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := &recorder{}
	r := extractionRunner(path, first, map[string]bool{"5": true})
	op := r.Op
	r.Op = func(opCtx context.Context, item domain.WorkItem) (*domain.Profile, error) {
		if item.Key == "3" {
			cancel()
		}
		return op(opCtx, item)
	}
	_, _, err = r.Run(ctx, all)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// only the first batch made it to the checkpoint, the interrupted one is discarded
	stored := loadFile(t, path)
	require.Len(t, stored, 2)
	assert.Equal(t, "1", stored[0].URL)
	assert.Equal(t, "2", stored[1].URL)

	second := &recorder{}
	_, _, err = extractionRunner(path, second, map[string]bool{"5": true}).Run(context.Background(), all)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5", "6"}, second.keys(), "checkpointed items never reprocessed")
	assert.Equal(t, loadFile(t, refPath), loadFile(t, path))
}

func TestRunner_RetryFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"url":"a","data":null,"error":"timeout"},`+
		`{"url":"b","data":{"name":"Bob","rating":null,"reviewCount":null,"aboutText":"","extendedAbout":null,"avatar":null}}]`), 0o600))

	t.Run("failed records kept by default", func(t *testing.T) {
		rec := &recorder{}
		_, _, err := extractionRunner(path, rec, nil).Run(context.Background(), items("a", "b"))
		require.NoError(t, err)
		assert.Empty(t, rec.keys())
	})

	t.Run("failed records processed again", func(t *testing.T) {
		rec := &recorder{}
		r := extractionRunner(path, rec, nil)
		r.Config.RetryFailed = true
		_, _, err := r.Run(context.Background(), items("a", "b"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, rec.keys())

		stored := loadFile(t, path)
		require.Len(t, stored, 2)
		assert.Equal(t, "b", stored[0].URL)
		assert.Equal(t, "a", stored[1].URL)
		assert.False(t, stored[1].Failed())
	})
}

func TestRunner_DuplicateInput(t *testing.T) {
	rec := &recorder{}
	r := extractionRunner(filepath.Join(t.TempDir(), "p.json"), rec, nil)
	st, summary, err := r.Run(context.Background(), []domain.WorkItem{{Key: "a"}, {Key: "a"}, {Key: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Len())
	assert.Equal(t, 1, rec.calls["a"])
	assert.Equal(t, 2, summary.Total)
}

func TestRunner_SortsByRank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	scores := map[string]float64{"a": 40, "b": 90, "c": 40, "d": 75}
	r := &Runner[*domain.Evaluation, domain.ScoreRecord]{
		Name:   "score",
		Store:  checkpoint.NewStore[domain.ScoreRecord](&checkpoint.FileBackend{Path: path}),
		Config: Config{BatchSize: 3, Batch: batch.Config{Concurrency: 3}},
		Op: func(_ context.Context, item domain.WorkItem) (*domain.Evaluation, error) {
			if item.Key == "d" {
				return nil, errors.New("overloaded")
			}
			return &domain.Evaluation{Score: scores[item.Key], Confidence: domain.ConfidenceMedium,
				Reasoning: domain.Reasoning{Summary: "ok"}}, nil
		},
		Success: func(item domain.WorkItem, ev *domain.Evaluation, attempts int) domain.ScoreRecord {
			return domain.NewScoreRecord(item.Key, *ev, attempts)
		},
		Failure: domain.FailedScore,
		Rank:    func(r domain.ScoreRecord) float64 { return r.Score },
	}

	st, _, err := r.Run(context.Background(), items("a", "b", "c", "d"))
	require.NoError(t, err)

	recs := st.Records()
	require.Len(t, recs, 4)
	assert.Equal(t, []string{"b", "a", "c", "d"}, []string{recs[0].URL, recs[1].URL, recs[2].URL, recs[3].URL})
	assert.Zero(t, recs[3].Score)
	assert.Contains(t, recs[3].Reasoning.Summary, "overloaded")
	assert.Equal(t, domain.ConfidenceLow, recs[3].Confidence)

	stored, err := checkpoint.NewStore[domain.ScoreRecord](&checkpoint.FileBackend{Path: path}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, recs, stored, "sorted state is persisted")
}

func TestRunner_Errors(t *testing.T) {
	t.Run("load failure", func(t *testing.T) {
		backend := &cmocks.BackendMock{
			ReadFunc:   func(context.Context) ([]byte, error) { return nil, errors.New("disk gone") },
			StringFunc: func() string { return "mock" },
		}
		r := extractionRunner("", &recorder{}, nil)
		r.Store = checkpoint.NewStore[domain.ExtractionRecord](backend)
		_, _, err := r.Run(context.Background(), items("a"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk gone")
	})

	t.Run("save failure", func(t *testing.T) {
		backend := &cmocks.BackendMock{
			ReadFunc:   func(context.Context) ([]byte, error) { return nil, nil },
			WriteFunc:  func(context.Context, []byte) error { return errors.New("read-only") },
			StringFunc: func() string { return "mock" },
		}
		rec := &recorder{}
		r := extractionRunner("", rec, nil)
		r.Store = checkpoint.NewStore[domain.ExtractionRecord](backend)
		_, _, err := r.Run(context.Background(), items("a", "b", "c"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read-only")
		assert.Equal(t, []string{"a", "b"}, rec.keys(), "no batch after a failed save")
		assert.Len(t, backend.WriteCalls(), 1)
	})

	t.Run("not configured", func(t *testing.T) {
		r := &Runner[int, domain.ExtractionRecord]{Name: "empty"}
		_, _, err := r.Run(context.Background(), nil)
		require.Error(t, err)
	})
}

func TestRunner_NothingPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	st, summary, err := extractionRunner(path, &recorder{}, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, 0, summary.Batches)
	data, err := os.ReadFile(path) //nolint:gosec // test file
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}
