package vector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds Qdrant connection and collection settings.
type Config struct {
	Host       string
	Port       int
	Collection string
	VectorSize int
	Distance   string // "cosine" (default), "dot", "euclid"
}

// Index is the Qdrant-backed vector index for document chunks.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	embedder    *Embedder
	config      Config
	logger      *slog.Logger
}

// NewIndex connects to Qdrant and returns an Index. The connection is lazy;
// an unreachable backend surfaces on the first call, not here.
func NewIndex(cfg Config, embedder *Embedder, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}

	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		embedder:    embedder,
		config:      cfg,
		logger:      logger,
	}, nil
}

// distance maps the configured metric name to the Qdrant enum.
func (i *Index) distance() pb.Distance {
	switch i.config.Distance {
	case "dot":
		return pb.Distance_Dot
	case "euclid":
		return pb.Distance_Euclid
	default:
		return pb.Distance_Cosine
	}
}

// EnsureCollection creates the collection if it does not exist. Idempotent.
// An unreachable backend is logged and swallowed so the application can still
// start; individual upserts and searches will fail later on their own.
func (i *Index) EnsureCollection(ctx context.Context) error {
	resp, err := i.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		i.logger.Error("qdrant unreachable, skipping collection init",
			"collection", i.config.Collection, "error", err)
		return nil
	}

	for _, c := range resp.Collections {
		if c.Name == i.config.Collection {
			i.logger.Info("collection already exists", "collection", i.config.Collection)
			return nil
		}
	}

	i.logger.Info("creating collection",
		"collection", i.config.Collection, "vector_size", i.config.VectorSize)

	_, err = i.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: i.config.Collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(i.config.VectorSize),
					Distance: i.distance(),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", i.config.Collection, err)
	}
	return nil
}

// UpsertChunk embeds the chunk content and writes the point under its
// deterministic ID, overwriting any prior point for the same
// (document, chunk index) pair.
func (i *Index) UpsertChunk(ctx context.Context, chunk ChunkPoint) error {
	embedding, err := i.embedder.EmbedText(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("chunk %d of document %s: %w", chunk.ChunkIndex, chunk.DocumentID, err)
	}

	id := PointID(chunk.DocumentID, chunk.ChunkIndex)
	point := &pb.PointStruct{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: embedding}}},
		Payload: chunkPayload(chunk),
	}

	_, err = i.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: i.config.Collection,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert chunk %d of document %s: %w", chunk.ChunkIndex, chunk.DocumentID, err)
	}

	i.logger.Debug("indexed chunk",
		"document_id", chunk.DocumentID,
		"chunk_index", chunk.ChunkIndex,
		"total_chunks", chunk.TotalChunks,
		"point_id", id)
	return nil
}

// Search embeds queryText and returns up to limit matches passing filters,
// ordered by descending score. Results below scoreThreshold are discarded by
// the backend.
func (i *Index) Search(ctx context.Context, queryText string, filters *SearchFilters, limit int, scoreThreshold float32) ([]SearchResult, error) {
	queryVector, err := i.embedder.EmbedText(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	req := &pb.SearchPoints{
		CollectionName: i.config.Collection,
		Vector:         queryVector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		ScoreThreshold: &scoreThreshold,
	}
	if f := buildFilter(filters); f != nil {
		req.Filter = f
	}

	resp, err := i.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]SearchResult, 0, len(resp.Result))
	for _, pt := range resp.Result {
		if pt.Score < scoreThreshold {
			continue
		}
		results = append(results, resultFromPayload(pt.Payload, pt.Score))
	}
	return results, nil
}

// DeleteByDocument removes every point whose payload document_id matches.
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	filter := &pb.Filter{
		Must: []*pb.Condition{keywordCondition("document_id", documentID)},
	}

	_, err := i.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: i.config.Collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}

	i.logger.Info("deleted indexed chunks", "document_id", documentID)
	return nil
}

// Close releases the gRPC connection.
func (i *Index) Close() error {
	return i.conn.Close()
}

// buildFilter converts the set fields of filters into a conjunctive Qdrant
// filter. Returns nil when no field is set.
func buildFilter(filters *SearchFilters) *pb.Filter {
	if filters.Empty() {
		return nil
	}

	var conditions []*pb.Condition
	if filters.Category != "" {
		conditions = append(conditions, keywordCondition("category", filters.Category))
	}
	if filters.TransactionID != "" {
		conditions = append(conditions, keywordCondition("transaction_id", filters.TransactionID))
	}
	if filters.HasAmounts != nil {
		conditions = append(conditions, boolCondition("has_amounts", *filters.HasAmounts))
	}
	if filters.HasDates != nil {
		conditions = append(conditions, boolCondition("has_dates", *filters.HasDates))
	}

	return &pb.Filter{Must: conditions}
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func boolCondition(key string, value bool) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Boolean{Boolean: value}},
			},
		},
	}
}

func chunkPayload(chunk ChunkPoint) map[string]*pb.Value {
	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return map[string]*pb.Value{
		"document_id":    stringValue(chunk.DocumentID),
		"transaction_id": stringValue(chunk.TransactionID),
		"chunk_index":    intValue(chunk.ChunkIndex),
		"total_chunks":   intValue(chunk.TotalChunks),
		"category":       stringValue(chunk.Category),
		"file_name":      stringValue(chunk.FileName),
		"content":        stringValue(chunk.Content),
		"token_count":    intValue(chunk.TokenCount),
		"has_amounts":    boolValue(chunk.HasAmounts),
		"has_dates":      boolValue(chunk.HasDates),
		"word_count":     intValue(chunk.WordCount),
		"created_at":     stringValue(createdAt.Format(time.RFC3339Nano)),
	}
}

func resultFromPayload(payload map[string]*pb.Value, score float32) SearchResult {
	return SearchResult{
		DocumentID:    payload["document_id"].GetStringValue(),
		TransactionID: payload["transaction_id"].GetStringValue(),
		ChunkIndex:    int(payload["chunk_index"].GetIntegerValue()),
		TotalChunks:   int(payload["total_chunks"].GetIntegerValue()),
		Category:      payload["category"].GetStringValue(),
		FileName:      payload["file_name"].GetStringValue(),
		Content:       payload["content"].GetStringValue(),
		TokenCount:    int(payload["token_count"].GetIntegerValue()),
		HasAmounts:    payload["has_amounts"].GetBoolValue(),
		HasDates:      payload["has_dates"].GetBoolValue(),
		WordCount:     int(payload["word_count"].GetIntegerValue()),
		Score:         score,
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}

func boolValue(b bool) *pb.Value {
	return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: b}}
}
