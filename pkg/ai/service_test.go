package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"triage-backend/internal/item/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
	calls    []CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.calls = append(f.calls, req)
	return f.response, f.err
}

var march10 = domain.Date{Year: 2024, Month: time.March, Day: 10}

func TestClassify_ResolvesRelativeDate(t *testing.T) {
	fake := &fakeCompleter{response: `{"title":"Call mom","section":"now","type":"task","effort":"low","context":"personal","dueDate":"2024-03-11"}`}
	svc := NewService(fake)

	draft, err := svc.Classify(context.Background(), "call mom tomorrow", march10)
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	req := fake.calls[0]
	assert.Equal(t, PurposeClassify, req.Purpose)
	assert.Contains(t, req.System, "Today's date is 2024-03-10.")
	assert.Equal(t, "call mom tomorrow", req.Prompt)
	assert.Equal(t, 512, req.MaxTokens)

	require.NotNil(t, draft.DueDate)
	assert.Equal(t, "2024-03-11", draft.DueDate.String())
	assert.Equal(t, domain.SectionNow, draft.Section)
}

func TestClassify_BlankInputMakesNoCall(t *testing.T) {
	fake := &fakeCompleter{}
	svc := NewService(fake)

	_, err := svc.Classify(context.Background(), "  \n\t", march10)

	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Empty(t, fake.calls)
}

func TestClassify_RejectsUnknownSection(t *testing.T) {
	fake := &fakeCompleter{response: `{"title":"x","section":"eventually","type":"task","context":"work"}`}
	svc := NewService(fake)

	_, err := svc.Classify(context.Background(), "something", march10)

	var ce *domain.ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.ReasonInvalidEnum, ce.Reason)
	assert.Equal(t, "section", ce.Field)
}

func TestClassify_UpstreamFailure(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	svc := NewService(&fakeCompleter{err: boom})

	_, err := svc.Classify(context.Background(), "something", march10)

	var ce *domain.ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.ReasonUpstream, ce.Reason)
	assert.ErrorIs(t, err, boom)
}

func TestSummarize_EmptyMakesNoCall(t *testing.T) {
	fake := &fakeCompleter{}
	svc := NewService(fake)

	text, err := svc.Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyBriefing, text)
	assert.Empty(t, fake.calls)
}

func TestSummarize_RendersItems(t *testing.T) {
	fake := &fakeCompleter{response: "  Mom first, then the deck.  "}
	svc := NewService(fake)

	effort := domain.EffortHigh
	due := domain.Date{Year: 2024, Month: time.March, Day: 12}
	items := []domain.Item{
		{
			ID: "1", Title: "Call mom", Section: domain.SectionNow, Type: domain.TypeTask,
			Context: domain.ContextPersonal,
		},
		{
			ID: "2", Title: "Q2 deck", Notes: domain.StringPtr("slides 4-9"), Section: domain.SectionThisWeek,
			Type: domain.TypeDelegated, Context: domain.ContextBoth, DelegatedTo: domain.StringPtr("Priya"),
			DueDate: &due, Effort: &effort,
		},
	}

	text, err := svc.Summarize(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, "Mom first, then the deck.", text)

	require.Len(t, fake.calls, 1)
	req := fake.calls[0]
	assert.Equal(t, PurposeBriefing, req.Purpose)
	assert.Equal(t, 300, req.MaxTokens)

	expected := "[NOW] Call mom [personal]\n" +
		"[THIS-WEEK] Q2 deck (slides 4-9) → delegated to Priya due 2024-03-12 effort: high"
	assert.Equal(t, expected, RenderItems(items))
	assert.True(t, strings.HasPrefix(req.Prompt, "Here are my current items:\n\n"+expected))
	assert.True(t, strings.HasSuffix(req.Prompt, "\n\nGive me my briefing."))
}
