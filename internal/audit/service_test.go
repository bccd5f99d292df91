package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastLimit  int
	lastOffset int
}

func (s *stubTimelineRepo) Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	s.lastLimit, s.lastOffset = limit, offset
	if limit <= 0 || limit > len(s.rows) {
		return s.rows, nil
	}
	return s.rows[:limit], nil
}

func row(id int64, at string, action string) TimelineRow {
	ts, _ := time.Parse(time.RFC3339, at)
	return TimelineRow{ID: id, At: ts, ActorID: 1, Action: action, Entity: "transaction", EntityID: "7"}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		row(3, "2025-03-10T10:00:00Z", "transaction.void"),
		row(2, "2025-03-09T09:00:00Z", "policy.denied"),
		row(1, "2025-03-08T08:00:00Z", "login"),
	}}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 3, repo.lastLimit)
	require.Equal(t, 0, repo.lastOffset)

	_, err = svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 51, repo.lastLimit)
	require.Equal(t, 100, repo.lastOffset)
}

func TestWriteCSV(t *testing.T) {
	r := row(9, "2025-03-10T10:00:00Z", "transaction.void")
	r.Meta = map[string]any{"reason": "duplicate, wrong branch"}
	out, err := WriteCSV([]TimelineRow{r})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "2025-03-10T10:00:00Z", records[1][1])
	require.JSONEq(t, `{"reason":"duplicate, wrong branch"}`, records[1][6])
}

type memoryWriter struct {
	mu      sync.Mutex
	entries []shared.AuditLog
	fail    bool
}

func (m *memoryWriter) Record(_ context.Context, log shared.AuditLog) error {
	if m.fail {
		return errors.New("db down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, log)
	return nil
}

func (m *memoryWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestRecorderPersistsAsynchronously(t *testing.T) {
	w := &memoryWriter{}
	rec := NewRecorder(w, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = rec.Run(ctx)
		close(done)
	}()

	require.NoError(t, rec.Record(context.Background(), shared.AuditLog{Action: "login", Entity: "user", EntityID: "1"}))
	require.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, w.entries[0].At.IsZero())

	cancel()
	<-done
}

func TestRecorderDropsWhenFullAndFlushesOnStop(t *testing.T) {
	w := &memoryWriter{}
	rec := NewRecorder(w, 1, nil)
	require.NoError(t, rec.Record(context.Background(), shared.AuditLog{Action: "a", Entity: "e", EntityID: "1"}))
	require.ErrorIs(t, rec.Record(context.Background(), shared.AuditLog{Action: "b", Entity: "e", EntityID: "2"}), ErrBufferFull)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, rec.Run(ctx))
	require.Equal(t, 1, w.count())
}

func TestRecorderSurvivesWriterFailure(t *testing.T) {
	w := &memoryWriter{fail: true}
	rec := NewRecorder(w, 2, nil)
	require.NoError(t, rec.Record(context.Background(), shared.AuditLog{Action: "a", Entity: "e", EntityID: "1"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, rec.Run(ctx))
}
