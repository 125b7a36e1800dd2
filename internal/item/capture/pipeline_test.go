package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"triage-backend/internal/item/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

type fakeClassifier struct {
	mu    sync.Mutex
	draft domain.ProcessedItem
	err   error
	block chan struct{}
	calls []string
	dates []domain.Date
}

func (f *fakeClassifier) Classify(_ context.Context, text string, today domain.Date) (domain.ProcessedItem, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.dates = append(f.dates, today)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.draft, f.err
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSink struct {
	mu        sync.Mutex
	created   []domain.Item
	discarded []string
	err       error
	persist   error
}

func (s *fakeSink) Create(item domain.Item) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, item)
	ch := make(chan error, 1)
	ch <- s.persist
	return ch, nil
}

func (s *fakeSink) Discard(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = append(s.discarded, id)
	return true, nil
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) phases() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Phase, 0, len(l.states))
	for _, s := range l.states {
		out = append(out, s.Phase)
	}
	return out
}

func callMom() domain.ProcessedItem {
	due := domain.Date{Year: 2024, Month: time.March, Day: 11}
	return domain.ProcessedItem{
		Title:   "Call mom",
		Section: domain.SectionNow,
		Type:    domain.TypeTask,
		Context: domain.ContextPersonal,
		DueDate: &due,
	}
}

func newTestPipeline(c *fakeClassifier, s *fakeSink, log *stateLog) *Pipeline {
	return NewPipeline(c, s,
		WithClock(func() time.Time { return t0 }),
		WithLocation(time.UTC),
		WithAckDuration(20*time.Millisecond),
		WithIDGenerator(func() string { return "id-1" }),
		WithOnChange(log.record),
	)
}

func TestPipeline_Success(t *testing.T) {
	classifier := &fakeClassifier{draft: callMom()}
	sink := &fakeSink{}
	log := &stateLog{}
	p := newTestPipeline(classifier, sink, log)

	item, err := p.Submit(context.Background(), "call mom tomorrow")
	require.NoError(t, err)

	assert.Equal(t, "id-1", item.ID)
	assert.Equal(t, "call mom tomorrow", item.Raw)
	assert.False(t, item.Completed)
	assert.Equal(t, t0, item.CreatedAt)
	assert.Equal(t, t0, item.UpdatedAt)
	require.NotNil(t, item.DueDate)
	assert.Equal(t, "2024-03-11", item.DueDate.String())

	require.Len(t, classifier.dates, 1)
	assert.Equal(t, "2024-03-10", classifier.dates[0].String())
	require.Len(t, sink.created, 1)

	state := p.State()
	assert.Equal(t, PhaseSucceeded, state.Phase)
	assert.Equal(t, "filed to Now", state.Ack)
	assert.Empty(t, state.Draft)

	assert.Eventually(t, func() bool { return p.State().Phase == PhaseIdle }, time.Second, 5*time.Millisecond)
	assert.Empty(t, p.State().Ack)
	assert.Equal(t, []Phase{PhaseSubmitting, PhaseSucceeded, PhaseIdle}, log.phases())
}

func TestPipeline_BlankInput(t *testing.T) {
	classifier := &fakeClassifier{draft: callMom()}
	p := newTestPipeline(classifier, &fakeSink{}, &stateLog{})

	_, err := p.Submit(context.Background(), "   \n")

	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Zero(t, classifier.callCount())
	assert.Equal(t, PhaseIdle, p.State().Phase)
}

func TestPipeline_Failures(t *testing.T) {
	tests := []struct {
		name       string
		classifier *fakeClassifier
		sink       *fakeSink
		stored     int
		discarded  []string
	}{
		{
			name:       "classification",
			classifier: &fakeClassifier{err: domain.NewClassificationError(domain.ReasonUpstream, "", errors.New("401"))},
			sink:       &fakeSink{},
		},
		{
			name:       "rejected by cache",
			classifier: &fakeClassifier{draft: callMom()},
			sink:       &fakeSink{err: errors.New("session closed")},
		},
		{
			name:       "persistence",
			classifier: &fakeClassifier{draft: callMom()},
			sink:       &fakeSink{persist: &domain.StoreError{Op: "insert", Err: errors.New("offline")}},
			stored:     1,
			discarded:  []string{"id-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &stateLog{}
			p := newTestPipeline(tt.classifier, tt.sink, log)

			_, err := p.Submit(context.Background(), "call mom tomorrow")
			require.Error(t, err)

			state := p.State()
			assert.Equal(t, PhaseIdle, state.Phase)
			assert.Equal(t, "call mom tomorrow", state.Draft)
			assert.Equal(t, GenericFailureMessage, state.Error)
			assert.Len(t, tt.sink.created, tt.stored)
			assert.Equal(t, tt.discarded, tt.sink.discarded)
			assert.Equal(t, []Phase{PhaseSubmitting, PhaseFailed, PhaseIdle}, log.phases())
		})
	}
}

func TestPipeline_RejectsOverlappingSubmit(t *testing.T) {
	classifier := &fakeClassifier{draft: callMom(), block: make(chan struct{})}
	p := newTestPipeline(classifier, &fakeSink{}, &stateLog{})

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), "first")
		errCh <- err
	}()

	require.Eventually(t, func() bool { return classifier.callCount() == 1 }, time.Second, time.Millisecond)

	_, err := p.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrCaptureInFlight)
	assert.Equal(t, "first", p.State().Draft)

	close(classifier.block)
	require.NoError(t, <-errCh)
	assert.Equal(t, 1, classifier.callCount())
}

func TestPipeline_ErrorClearedOnNextSubmit(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("boom")}
	p := newTestPipeline(classifier, &fakeSink{}, &stateLog{})

	_, err := p.Submit(context.Background(), "x")
	require.Error(t, err)
	require.NotEmpty(t, p.State().Error)

	classifier.mu.Lock()
	classifier.err = nil
	classifier.draft = callMom()
	classifier.mu.Unlock()

	_, err = p.Submit(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, p.State().Error)
}
