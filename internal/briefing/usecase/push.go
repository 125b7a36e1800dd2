package usecase

import (
	"context"
	"time"

	"triage-backend/internal/briefing/domain"
	"triage-backend/internal/briefing/repository"
	devicerepo "triage-backend/internal/device/repository"
	itemdomain "triage-backend/internal/item/domain"
	"triage-backend/pkg/ai"
	"triage-backend/pkg/fcm"
	"triage-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// Pusher delivers a notification and reports the tokens that failed
type Pusher interface {
	SendToDevices(ctx context.Context, tokens []string, n fcm.Notification) ([]string, error)
}

// ItemLister reads the whole item collection
type ItemLister interface {
	ListAll(ctx context.Context) ([]itemdomain.Item, error)
}

const pushTitle = "Today's Briefing"

// MorningPush sends each registered device its briefing for the day
type MorningPush struct {
	repo       repository.BriefingRepository
	tokens     devicerepo.TokenRepository
	items      ItemLister
	summarizer ai.Summarizer
	pusher     Pusher
	now        func() time.Time
	loc        *time.Location
	log        zerolog.Logger
}

func NewMorningPush(
	repo repository.BriefingRepository,
	tokens devicerepo.TokenRepository,
	items ItemLister,
	summarizer ai.Summarizer,
	pusher Pusher,
	loc *time.Location,
) *MorningPush {
	if loc == nil {
		loc = time.Local
	}
	return &MorningPush{
		repo:       repo,
		tokens:     tokens,
		items:      items,
		summarizer: summarizer,
		pusher:     pusher,
		now:        time.Now,
		loc:        loc,
		log:        logger.Component("morning-push"),
	}
}

// Run pushes the day's briefing to every device with a token. A device that
// already has today's briefing gets the cached text.
func (p *MorningPush) Run(ctx context.Context) {
	if p.pusher == nil {
		p.log.Debug().Msg("push client not available, skipping")
		return
	}

	tokens, err := p.tokens.ListTokens(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("listing device tokens failed")
		return
	}
	if len(tokens) == 0 {
		return
	}

	byDevice := make(map[string][]string)
	var order []string
	for _, t := range tokens {
		if _, ok := byDevice[t.DeviceID]; !ok {
			order = append(order, t.DeviceID)
		}
		byDevice[t.DeviceID] = append(byDevice[t.DeviceID], t.Token)
	}

	today := itemdomain.DateOf(p.now().In(p.loc)).String()
	var fresh string

	for _, deviceID := range order {
		text, err := p.textFor(ctx, deviceID, today, &fresh)
		if err != nil {
			p.log.Error().Err(err).Str("device", deviceID).Msg("briefing generation failed")
			continue
		}

		failed, err := p.pusher.SendToDevices(ctx, byDevice[deviceID], fcm.Notification{
			Title: pushTitle,
			Body:  text,
			Data: map[string]string{
				"type": "briefing",
				"date": today,
			},
			Link: "/",
		})
		if err != nil {
			p.log.Error().Err(err).Str("device", deviceID).Msg("sending briefing failed")
			continue
		}

		for _, token := range failed {
			if err := p.tokens.DeleteToken(ctx, token); err != nil {
				p.log.Warn().Err(err).Msg("removing stale token failed")
			}
		}
	}
}

// textFor returns the device's cached briefing or the one computed for this
// run, computing and caching it on first use.
func (p *MorningPush) textFor(ctx context.Context, deviceID, today string, fresh *string) (string, error) {
	cached, err := p.repo.Get(ctx, deviceID, today)
	if err != nil {
		p.log.Warn().Err(err).Str("device", deviceID).Msg("reading cached briefing failed")
	}
	if cached != nil && cached.Text != "" {
		return cached.Text, nil
	}

	if *fresh == "" {
		items, err := p.items.ListAll(ctx)
		if err != nil {
			return "", err
		}
		text, err := p.summarizer.Summarize(ctx, itemdomain.Active(items))
		if err != nil {
			return "", err
		}
		*fresh = text
	}

	if err := p.repo.Save(ctx, &domain.Briefing{DeviceID: deviceID, Date: today, Text: *fresh}); err != nil {
		p.log.Warn().Err(err).Str("device", deviceID).Msg("caching briefing failed")
	}
	return *fresh, nil
}
