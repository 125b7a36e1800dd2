package chroma

import (
	"context"
	"fmt"
	"os"

	"triage-backend/pkg/logger"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	"github.com/rs/zerolog"
)

const (
	defaultCollection = "items"
	embeddingModel    = "text-embedding-004"
	// embedding models have token limits
	maxDocumentLength = 10000
)

// Options configures the Chroma Cloud connection
type Options struct {
	APIKey       string
	Tenant       string
	Database     string
	GeminiAPIKey string
	Collection   string
}

// Index is a Chroma collection of item embeddings
type Index struct {
	client     chroma.Client
	collection chroma.Collection
	log        zerolog.Logger
}

func NewIndex(ctx context.Context, opts Options) (*Index, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY is required")
	}
	if opts.Collection == "" {
		opts.Collection = defaultCollection
	}

	// the embedding function reads its key from the environment
	if opts.GeminiAPIKey != "" {
		os.Setenv("GEMINI_API_KEY", opts.GeminiAPIKey)
	}
	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel(embeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	var client chroma.Client
	switch {
	case opts.Database != "" && opts.Tenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(opts.APIKey),
			chroma.WithDatabaseAndTenant(opts.Database, opts.Tenant),
		)
	case opts.Tenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(opts.APIKey),
			chroma.WithTenant(opts.Tenant),
		)
	default:
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(opts.APIKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	collection, err := client.GetOrCreateCollection(ctx, opts.Collection,
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	log := logger.Component("chroma")
	log.Info().Str("collection", opts.Collection).Msg("index ready")
	return &Index{client: client, collection: collection, log: log}, nil
}

// Upsert stores or replaces the document for id
func (x *Index) Upsert(ctx context.Context, id, text string, meta map[string]interface{}) error {
	if r := []rune(text); len(r) > maxDocumentLength {
		text = string(r[:maxDocumentLength])
	}

	metadata, err := chroma.NewDocumentMetadataFromMap(meta)
	if err != nil {
		return fmt.Errorf("failed to create metadata: %w", err)
	}

	err = x.collection.Upsert(ctx,
		chroma.WithIDs(chroma.DocumentID(id)),
		chroma.WithMetadatas(metadata),
		chroma.WithTexts(text),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (x *Index) Delete(ctx context.Context, id string) error {
	if err := x.collection.Delete(ctx, chroma.WithIDsDelete(chroma.DocumentID(id))); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

// Search returns the ids nearest to query with their distances, closest first
func (x *Index) Search(ctx context.Context, query string, limit int) ([]string, []float64, error) {
	results, err := x.collection.Query(ctx,
		chroma.WithQueryTexts(query),
		chroma.WithNResults(limit),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return []string{}, []float64{}, nil
	}

	idGroups := results.GetIDGroups()
	if len(idGroups) == 0 || len(idGroups[0]) == 0 {
		return []string{}, []float64{}, nil
	}

	ids := make([]string, 0, len(idGroups[0]))
	for _, id := range idGroups[0] {
		ids = append(ids, string(id))
	}

	distances := []float64{}
	if groups := results.GetDistancesGroups(); len(groups) > 0 {
		for _, d := range groups[0] {
			distances = append(distances, float64(d))
		}
	}

	x.log.Debug().Str("query", query).Int("hits", len(ids)).Msg("semantic search")
	return ids, distances, nil
}

func (x *Index) Close() error {
	return x.client.Close()
}
