package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"triage-backend/internal/item/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEmailCapture(t *testing.T) {
	tests := []struct {
		name                  string
		sender, subject, body string
		want                  string
	}{
		{
			name:    "with body",
			sender:  "ana@example.com",
			subject: "Contract",
			body:    "Please sign by Friday.",
			want:    "Forwarded email\nFrom: ana@example.com\nSubject: Contract\n\nPlease sign by Friday.",
		},
		{
			name:    "blank body",
			sender:  "ana@example.com",
			subject: "Ping",
			body:    "  \n ",
			want:    "Forwarded email\nFrom: ana@example.com\nSubject: Ping",
		},
		{
			name:   "missing subject",
			sender: "ana@example.com",
			want:   "Forwarded email\nFrom: ana@example.com\nSubject: (no subject)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildEmailCapture(tt.sender, tt.subject, tt.body))
		})
	}
}

func TestBuildEmailCapture_TruncatesBody(t *testing.T) {
	body := strings.Repeat("é", 2500)
	got := BuildEmailCapture("a", "b", body)

	prefix := "Forwarded email\nFrom: a\nSubject: b\n\n"
	require.True(t, strings.HasPrefix(got, prefix))
	assert.Equal(t, 2000, len([]rune(strings.TrimPrefix(got, prefix))))
}

type memStore struct {
	mu    sync.Mutex
	items []domain.Item
	err   error
}

func (m *memStore) Insert(_ context.Context, item domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, item)
	return nil
}

func (m *memStore) Update(context.Context, string, domain.Patch) error { return nil }
func (m *memStore) Delete(context.Context, string) error               { return nil }

func (m *memStore) ListAll(context.Context) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Item(nil), m.items...), nil
}

func (m *memStore) FindByID(context.Context, string) (*domain.Item, error) { return nil, nil }

func TestInbound_IngestEmail(t *testing.T) {
	classifier := &fakeClassifier{draft: callMom()}
	store := &memStore{}
	in := NewInbound(classifier, store, time.UTC)
	in.now = func() time.Time { return t0 }

	item, err := in.IngestEmail(context.Background(), "ana@example.com", "", "call mom tomorrow")
	require.NoError(t, err)

	require.Len(t, classifier.calls, 1)
	assert.Equal(t, "Forwarded email\nFrom: ana@example.com\nSubject: (no subject)\n\ncall mom tomorrow", classifier.calls[0])
	assert.Equal(t, "2024-03-10", classifier.dates[0].String())

	require.Len(t, store.items, 1)
	assert.Equal(t, item, store.items[0])
	assert.Equal(t, classifier.calls[0], item.Raw)
	assert.NotEmpty(t, item.ID)
}

func TestInbound_Failures(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("upstream")}
	store := &memStore{}
	in := NewInbound(classifier, store, time.UTC)

	_, err := in.Ingest(context.Background(), "x")
	assert.Error(t, err)
	assert.Empty(t, store.items)

	classifier.err = nil
	classifier.draft = callMom()
	store.err = &domain.StoreError{Op: "insert", Err: errors.New("offline")}

	_, err = in.Ingest(context.Background(), "x")
	var storeErr *domain.StoreError
	assert.True(t, errors.As(err, &storeErr))
}
