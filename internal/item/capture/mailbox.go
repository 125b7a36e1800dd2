package capture

import (
	"context"
	"sync/atomic"

	"triage-backend/pkg/imap"
	"triage-backend/pkg/logger"

	"github.com/rs/zerolog"
)

const mailboxBatch = 25

// MailSource is a mailbox that can be drained of unseen mail
type MailSource interface {
	FetchUnseen(ctx context.Context, limit int) ([]imap.Message, error)
	MarkSeen(ctx context.Context, uids []uint32) error
}

// MailboxPoller files every unseen message in a mailbox as an inbound capture
type MailboxPoller struct {
	source  MailSource
	inbound *Inbound
	running atomic.Bool
	log     zerolog.Logger
}

func NewMailboxPoller(source MailSource, inbound *Inbound) *MailboxPoller {
	return &MailboxPoller{source: source, inbound: inbound, log: logger.Component("mailbox")}
}

// Poll files one batch of unseen mail and returns how many were filed. Every
// fetched message is marked seen, filed or not, so a failure is not retried.
// A poll that starts while another is running does nothing.
func (p *MailboxPoller) Poll(ctx context.Context) (int, error) {
	if !p.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer p.running.Store(false)

	messages, err := p.source.FetchUnseen(ctx, mailboxBatch)
	if err != nil {
		p.log.Error().Err(err).Msg("fetching unseen mail failed")
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	filed := 0
	seen := make([]uint32, 0, len(messages))
	for _, m := range messages {
		if _, err := p.inbound.IngestEmail(ctx, m.From, m.Subject, m.Body); err != nil {
			p.log.Warn().Err(err).Uint32("uid", m.UID).Msg("message not filed")
		} else {
			filed++
		}
		seen = append(seen, m.UID)
	}

	if err := p.source.MarkSeen(ctx, seen); err != nil {
		p.log.Error().Err(err).Msg("marking mail seen failed")
		return filed, err
	}
	p.log.Info().Int("fetched", len(messages)).Int("filed", filed).Msg("mailbox polled")
	return filed, nil
}
