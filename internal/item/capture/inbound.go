package capture

import (
	"context"
	"strings"
	"time"

	"triage-backend/internal/item/domain"
	"triage-backend/internal/item/repository"
	"triage-backend/pkg/ai"
	"triage-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxEmailBody = 2000

// BuildEmailCapture composes the capture text for a forwarded email. Only
// the first 2000 characters of the body are kept.
func BuildEmailCapture(sender, subject, body string) string {
	if subject == "" {
		subject = "(no subject)"
	}
	parts := []string{
		"Forwarded email",
		"From: " + sender,
		"Subject: " + subject,
	}
	if strings.TrimSpace(body) != "" {
		if r := []rune(body); len(r) > maxEmailBody {
			body = string(r[:maxEmailBody])
		}
		parts = append(parts, "\n"+body)
	}
	return strings.Join(parts, "\n")
}

// Inbound files captures that arrive without a session. Items go straight
// to the store; open sessions pick them up from the change feed.
type Inbound struct {
	classifier ai.Classifier
	repo       repository.ItemRepository
	now        func() time.Time
	loc        *time.Location
	newID      func() string
	log        zerolog.Logger
}

func NewInbound(classifier ai.Classifier, repo repository.ItemRepository, loc *time.Location) *Inbound {
	if loc == nil {
		loc = time.Local
	}
	return &Inbound{
		classifier: classifier,
		repo:       repo,
		now:        time.Now,
		loc:        loc,
		newID:      uuid.NewString,
		log:        logger.Component("inbound"),
	}
}

// Ingest classifies and stores text. Failures are logged and returned; there
// is no retry.
func (in *Inbound) Ingest(ctx context.Context, text string) (domain.Item, error) {
	now := in.now()

	draft, err := in.classifier.Classify(ctx, text, domain.DateOf(now.In(in.loc)))
	if err != nil {
		in.log.Error().Err(err).Msg("inbound classification failed")
		return domain.Item{}, err
	}

	item := domain.NewItem(in.newID(), text, draft, now)
	if err := in.repo.Insert(ctx, item); err != nil {
		in.log.Error().Err(err).Str("id", item.ID).Msg("inbound insert failed")
		return domain.Item{}, err
	}

	in.log.Info().Str("id", item.ID).Str("section", string(item.Section)).Msg("inbound item filed")
	return item, nil
}

// IngestEmail builds the capture text for an email and ingests it
func (in *Inbound) IngestEmail(ctx context.Context, sender, subject, body string) (domain.Item, error) {
	return in.Ingest(ctx, BuildEmailCapture(sender, subject, body))
}
