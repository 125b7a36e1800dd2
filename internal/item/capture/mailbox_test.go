package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"triage-backend/pkg/imap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailbox struct {
	messages []imap.Message
	fetchErr error
	seen     []uint32
}

func (f *fakeMailbox) FetchUnseen(_ context.Context, limit int) ([]imap.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := f.messages
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uids []uint32) error {
	f.seen = append(f.seen, uids...)
	return nil
}

func TestMailboxPoller_FilesAndMarksSeen(t *testing.T) {
	mailbox := &fakeMailbox{messages: []imap.Message{
		{UID: 7, From: "ana@example.com", Subject: "Contract", Body: "sign by friday"},
		{UID: 9, From: "sam@example.com", Subject: "Lunch"},
	}}
	classifier := &fakeClassifier{draft: callMom()}
	store := &memStore{}
	in := NewInbound(classifier, store, time.UTC)

	filed, err := NewMailboxPoller(mailbox, in).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, filed)
	assert.Equal(t, []uint32{7, 9}, mailbox.seen)

	require.Len(t, classifier.calls, 2)
	assert.Equal(t, "Forwarded email\nFrom: ana@example.com\nSubject: Contract\n\nsign by friday", classifier.calls[0])
	assert.Len(t, store.items, 2)
}

func TestMailboxPoller_FailedMessageIsNotRetried(t *testing.T) {
	mailbox := &fakeMailbox{messages: []imap.Message{{UID: 3, From: "x@example.com", Subject: "?"}}}
	in := NewInbound(&fakeClassifier{err: errors.New("upstream")}, &memStore{}, time.UTC)

	filed, err := NewMailboxPoller(mailbox, in).Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, filed)
	assert.Equal(t, []uint32{3}, mailbox.seen)
}

func TestMailboxPoller_FetchError(t *testing.T) {
	mailbox := &fakeMailbox{fetchErr: errors.New("login failed")}
	classifier := &fakeClassifier{}
	in := NewInbound(classifier, &memStore{}, time.UTC)

	_, err := NewMailboxPoller(mailbox, in).Poll(context.Background())
	assert.Error(t, err)
	assert.Zero(t, classifier.callCount())
}
