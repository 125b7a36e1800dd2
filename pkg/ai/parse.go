package ai

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"triage-backend/internal/item/domain"
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```\\s*$")
)

type rawClassification struct {
	Title       *string `json:"title"`
	Notes       *string `json:"notes"`
	Section     *string `json:"section"`
	Type        *string `json:"type"`
	Effort      *string `json:"effort"`
	Context     *string `json:"context"`
	DelegatedTo *string `json:"delegatedTo"`
	DueDate     *string `json:"dueDate"`
}

// ParseClassification isolates the JSON object in a model response and
// validates it into a draft. Code fences and surrounding prose are ignored.
func ParseClassification(text string) (domain.ProcessedItem, error) {
	payload, err := extractObject(text)
	if err != nil {
		return domain.ProcessedItem{}, err
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return domain.ProcessedItem{}, domain.NewClassificationError(domain.ReasonMalformedJSON, "", err)
	}
	return raw.validate()
}

func extractObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = leadingFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", domain.NewClassificationError(domain.ReasonNoPayload, "", errors.New("no JSON object in response"))
	}
	return text[start : end+1], nil
}

func (r rawClassification) validate() (domain.ProcessedItem, error) {
	var out domain.ProcessedItem

	title := value(r.Title)
	if title == "" {
		return out, missing("title")
	}
	out.Title = title

	section, err := required(r.Section, "section", domain.ParseSection)
	if err != nil {
		return out, err
	}
	out.Section = section

	typ, err := required(r.Type, "type", domain.ParseItemType)
	if err != nil {
		return out, err
	}
	out.Type = typ

	ctx, err := required(r.Context, "context", domain.ParseContext)
	if err != nil {
		return out, err
	}
	out.Context = ctx

	if v := value(r.Effort); v != "" {
		effort, err := domain.ParseEffort(v)
		if err != nil {
			return out, domain.NewClassificationError(domain.ReasonInvalidEnum, "effort", err)
		}
		out.Effort = &effort
	}

	if v := value(r.DueDate); v != "" {
		due, err := domain.ParseDate(v)
		if err != nil {
			return out, domain.NewClassificationError(domain.ReasonInvalidDate, "dueDate", err)
		}
		out.DueDate = &due
	}

	out.Notes = domain.StringPtr(value(r.Notes))
	out.DelegatedTo = domain.StringPtr(value(r.DelegatedTo))
	return out, nil
}

func required[T any](v *string, field string, parse func(string) (T, error)) (T, error) {
	var zero T
	s := value(v)
	if s == "" {
		return zero, missing(field)
	}
	parsed, err := parse(s)
	if err != nil {
		return zero, domain.NewClassificationError(domain.ReasonInvalidEnum, field, err)
	}
	return parsed, nil
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func missing(field string) error {
	return domain.NewClassificationError(domain.ReasonMissingField, field, errors.New(field+" is required"))
}
