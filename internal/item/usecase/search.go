package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"triage-backend/internal/item/domain"
	"triage-backend/internal/item/repository"
	"triage-backend/pkg/fuzzy"
)

// ErrSemanticUnavailable is returned for semantic search without an index
var ErrSemanticUnavailable = errors.New("semantic search not available")

type SearchMode string

const (
	// SearchSubstring is a case-insensitive contains over title, notes, raw
	// text and delegate
	SearchSubstring SearchMode = "substring"
	SearchFuzzy     SearchMode = "fuzzy"
	SearchSemantic  SearchMode = "semantic"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// ParseSearchMode defaults to substring when mode is empty
func ParseSearchMode(mode string) (SearchMode, error) {
	switch m := SearchMode(strings.ToLower(mode)); m {
	case "":
		return SearchSubstring, nil
	case SearchSubstring, SearchFuzzy, SearchSemantic:
		return m, nil
	default:
		return "", &domain.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown search mode %q", mode)}
	}
}

// SemanticIndex finds item ids by meaning
type SemanticIndex interface {
	Search(ctx context.Context, query string, limit int) ([]string, []float64, error)
}

// SearchResult is an item with its relevance, higher is better
type SearchResult struct {
	Item  domain.Item `json:"item"`
	Score float64     `json:"score"`
}

type SearchUsecase struct {
	repo  repository.ItemRepository
	index SemanticIndex
}

// NewSearchUsecase creates a search usecase. index may be nil.
func NewSearchUsecase(repo repository.ItemRepository, index SemanticIndex) *SearchUsecase {
	return &SearchUsecase{repo: repo, index: index}
}

func (u *SearchUsecase) Search(ctx context.Context, query string, mode SearchMode, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if mode == SearchSemantic {
		return u.semantic(ctx, query, limit)
	}

	items, err := u.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	switch mode {
	case SearchFuzzy:
		results = FuzzySearch(items, query)
	default:
		results = SubstringSearch(items, query)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (u *SearchUsecase) semantic(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if u.index == nil {
		return nil, ErrSemanticUnavailable
	}
	ids, distances, err := u.index.Search(ctx, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(ids))
	for i, id := range ids {
		item, err := u.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		// the index can lag behind deletes
		if item == nil {
			continue
		}
		score := 0.0
		if i < len(distances) {
			score = 1 / (1 + distances[i])
		}
		results = append(results, SearchResult{Item: *item, Score: score})
	}
	return results, nil
}

// SubstringSearch keeps the items whose title, notes, raw text or delegate
// contain query, case-insensitively, in their original order.
func SubstringSearch(items []domain.Item, query string) []SearchResult {
	q := strings.ToLower(query)
	out := []SearchResult{}
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), q) ||
			strings.Contains(strings.ToLower(deref(it.Notes)), q) ||
			strings.Contains(strings.ToLower(it.Raw), q) ||
			strings.Contains(strings.ToLower(deref(it.DelegatedTo)), q) {
			out = append(out, SearchResult{Item: it, Score: 1})
		}
	}
	return out
}

// FuzzySearch ranks items by typo-tolerant relevance, best first
func FuzzySearch(items []domain.Item, query string) []SearchResult {
	out := []SearchResult{}
	for _, it := range items {
		score := fuzzy.Score(query,
			fuzzy.Field{Text: it.Title, Weight: 2},
			fuzzy.Field{Text: deref(it.DelegatedTo), Weight: 1.5},
			fuzzy.Field{Text: deref(it.Notes), Weight: 1},
			fuzzy.Field{Text: it.Raw, Weight: 0.5},
		)
		if score > 0 {
			out = append(out, SearchResult{Item: it, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Document is the text an item is embedded as
func Document(it domain.Item) string {
	var b strings.Builder
	b.WriteString(it.Title)
	if it.Notes != nil {
		b.WriteString("\n")
		b.WriteString(*it.Notes)
	}
	if it.DelegatedTo != nil {
		b.WriteString("\nDelegated to ")
		b.WriteString(*it.DelegatedTo)
	}
	b.WriteString("\n\n")
	b.WriteString(it.Raw)
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
