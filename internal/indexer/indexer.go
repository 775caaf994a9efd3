// ABOUTME: Qdrant ingestion pipeline for encrypted document chunks
// ABOUTME: Upserts one point per document with ciphertext hash, never plaintext

package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Document is one chunk handed to the indexer. Body is sealed before
// anything derived from it leaves the process; Excerpt is the
// caller-redacted preview that is safe to store.
type Document struct {
	ID      string
	Title   string
	Body    string
	Excerpt string
}

// Indexer writes encrypted document points into a Qdrant collection.
type Indexer struct {
	client     *qdrant.Client
	cipher     *Cipher
	embedder   Embedder
	collection string
	logger     *slog.Logger
}

// New connects to Qdrant and returns an indexer for the given collection.
func New(host string, port int, collection string, c *Cipher, e Embedder, logger *slog.Logger) (*Indexer, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		client:     client,
		cipher:     c,
		embedder:   e,
		collection: collection,
		logger:     logger.With("component", "indexer"),
	}, nil
}

// EnsureCollection creates the collection if it does not exist.
func (ix *Indexer) EnsureCollection(ctx context.Context) error {
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if exists {
		return nil
	}

	err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", ix.collection, err)
	}
	ix.logger.Info("collection created", "collection", ix.collection, "vector_size", VectorSize)
	return nil
}

// Ingest seals, hashes, embeds, and upserts the given documents. The
// stored payload carries only the document ID, title, ciphertext hash,
// and redacted excerpt.
func (ix *Indexer) Ingest(ctx context.Context, docs []Document) error {
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		point, err := ix.buildPoint(ctx, doc)
		if err != nil {
			return fmt.Errorf("document %q: %w", doc.ID, err)
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return nil
	}

	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	ix.logger.Info("documents ingested", "collection", ix.collection, "count", len(points))
	return nil
}

func (ix *Indexer) buildPoint(ctx context.Context, doc Document) (*qdrant.PointStruct, error) {
	sealed, err := ix.cipher.Seal([]byte(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("sealing body: %w", err)
	}

	vec, err := ix.embedder.Embed(ctx, doc.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewID(uuid.NewString()),
		Vectors: qdrant.NewVectors(vec...),
		Payload: qdrant.NewValueMap(map[string]any{
			"doc_id":          doc.ID,
			"title":           doc.Title,
			"ciphertext_hash": HashHex(sealed),
			"excerpt":         doc.Excerpt,
		}),
	}, nil
}
