package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"triage-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// FallbackService routes each completion to the primary provider and falls
// back to the secondary when it fails.
type FallbackService struct {
	primary       Completer
	secondary     Completer
	primaryName   string
	secondaryName string
	log           zerolog.Logger
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primaryName string, primary Completer, secondaryName string, secondary Completer) *FallbackService {
	return &FallbackService{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
		log:           logger.Component("ai-fallback"),
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return containsAny(err.Error(), []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"EOF",
	})
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == 429 {
		return true
	}

	return containsAny(err.Error(), []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"overloaded",
	})
}

func containsAny(s string, indicators []string) bool {
	s = strings.ToLower(s)
	for _, indicator := range indicators {
		if strings.Contains(s, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

// Complete implements Completer
func (f *FallbackService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var primaryErr error
	if f.primary != nil {
		result, err := f.primary.Complete(ctx, req)
		if err == nil {
			return result, nil
		}
		primaryErr = err

		ev := f.log.Warn().Err(err).Str("purpose", string(req.Purpose)).Str("provider", f.primaryName)
		switch {
		case isQuotaError(err):
			ev.Msg("primary quota exhausted, falling back")
		case isConnectionError(err):
			ev.Msg("primary unreachable, falling back")
		default:
			ev.Msg("primary failed, falling back")
		}
	}

	if f.secondary == nil {
		if primaryErr != nil {
			return "", primaryErr
		}
		return "", fmt.Errorf("no AI provider available")
	}

	result, err := f.secondary.Complete(ctx, req)
	if err == nil {
		return result, nil
	}

	// a quota error is often transient, so give the primary one more try
	// when the secondary cannot be reached at all
	if isConnectionError(err) && isQuotaError(primaryErr) {
		f.log.Warn().Err(err).Str("provider", f.secondaryName).Msg("secondary unreachable, retrying primary")
		return f.primary.Complete(ctx, req)
	}
	return "", fmt.Errorf("%s failed: %w", f.secondaryName, err)
}
