// Package milvus wraps the Milvus SDK client for vector collection management.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/knowledge-x/pkg/options/milvus"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// CollectionSchema defines the schema for a vector collection.
// The primary key is an externally assigned VARCHAR so that chunk identity
// stays stable across re-ingestion.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	MetaFields  []MetaField
}

// MetaField defines a metadata field in the collection.
type MetaField struct {
	Name        string
	DataType    entity.FieldType
	MaxLen      int              // For VARCHAR type (and VARCHAR array elements)
	ElementType entity.FieldType // For ARRAY type
	MaxCapacity int              // For ARRAY type
}

// HasCollection reports whether the collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// VectorDimension returns the dimension of the embedding field of an existing
// collection, or 0 if the collection has no float vector field.
func (c *Client) VectorDimension(ctx context.Context, name string) (int, error) {
	coll, err := c.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(name))
	if err != nil {
		return 0, fmt.Errorf("failed to describe collection: %w", err)
	}

	for _, f := range coll.Schema.Fields {
		if f.DataType != entity.FieldTypeFloatVector {
			continue
		}
		if dimStr, ok := f.TypeParams[entity.TypeParamDim]; ok {
			dim, err := strconv.Atoi(dimStr)
			if err != nil {
				return 0, fmt.Errorf("invalid dim param %q: %w", dimStr, err)
			}
			return dim, nil
		}
	}
	return 0, nil
}

// CreateCollection creates a new collection with the given schema.
// Creation is idempotent: if the collection already exists it returns nil
// without inspecting the existing schema. Callers that need schema
// verification should use VectorDimension.
func (c *Client) CreateCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.HasCollection(ctx, schema.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description)

	// 主键由调用方生成，保证重复摄入时 chunk 身份稳定
	collSchema.WithField(
		entity.NewField().
			WithName("id").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(128).
			WithIsPrimaryKey(true),
	)

	collSchema.WithField(
		entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)),
	)

	for _, f := range schema.MetaFields {
		field := entity.NewField().
			WithName(f.Name).
			WithDataType(f.DataType)
		if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
			field.WithMaxLength(int64(f.MaxLen))
		}
		if f.DataType == entity.FieldTypeArray {
			field.WithElementType(f.ElementType)
			if f.MaxCapacity > 0 {
				field.WithMaxCapacity(int64(f.MaxCapacity))
			}
			if f.ElementType == entity.FieldTypeVarChar && f.MaxLen > 0 {
				field.WithMaxLength(int64(f.MaxLen))
			}
		}
		collSchema.WithField(field)
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// 余弦相似度索引，检索按相似度降序排列
	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, "embedding", idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	return nil
}

// InsertData represents data to be inserted into a collection.
// IDs, Embeddings and every Metadata column must have the same length.
type InsertData struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]any
}

// Insert inserts vectors and metadata into the collection.
func (c *Client) Insert(ctx context.Context, collectionName string, data *InsertData) error {
	if len(data.IDs) == 0 {
		return nil
	}

	columns := make([]column.Column, 0, len(data.Metadata)+2)
	columns = append(columns, column.NewColumnVarChar("id", data.IDs))
	columns = append(columns, column.NewColumnFloatVector("embedding", len(data.Embeddings[0]), data.Embeddings))

	for name, values := range data.Metadata {
		switch v := values[0].(type) {
		case string:
			strVals := make([]string, len(values))
			for i, val := range values {
				strVals[i] = val.(string)
			}
			columns = append(columns, column.NewColumnVarChar(name, strVals))
		case int64:
			intVals := make([]int64, len(values))
			for i, val := range values {
				intVals[i] = val.(int64)
			}
			columns = append(columns, column.NewColumnInt64(name, intVals))
		case bool:
			boolVals := make([]bool, len(values))
			for i, val := range values {
				boolVals[i] = val.(bool)
			}
			columns = append(columns, column.NewColumnBool(name, boolVals))
		case []string:
			arrVals := make([][]string, len(values))
			for i, val := range values {
				arrVals[i] = val.([]string)
			}
			columns = append(columns, column.NewColumnVarCharArray(name, arrVals))
		default:
			return fmt.Errorf("unsupported metadata type: %T for field %s", v, name)
		}
	}

	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}

	// Flush so freshly ingested chunks are visible to the next query
	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	return nil
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Search performs a vector similarity search. A non-empty filter expression
// restricts the candidate set before ranking.
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, filter string, outputFields []string) ([]SearchResult, error) {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collectionName))
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	searchVectors := []entity.Vector{entity.FloatVector(vector)}

	opt := milvusclient.NewSearchOption(collectionName, topK, searchVectors).
		WithANNSField("embedding").
		WithSearchParam("nprobe", "16").
		WithOutputFields(outputFields...)
	if filter != "" {
		opt = opt.WithFilter(filter)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	searchResults := make([]SearchResult, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		result := SearchResult{
			Score:    results[0].Scores[i],
			Metadata: make(map[string]any),
		}

		if idCol, ok := results[0].IDs.(*column.ColumnVarChar); ok {
			result.ID = idCol.Data()[i]
		}

		for _, field := range results[0].Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				result.Metadata[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				result.Metadata[col.Name()] = col.Data()[i]
			case *column.ColumnBool:
				result.Metadata[col.Name()] = col.Data()[i]
			}
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// Query performs a metadata-only scan with a boolean filter expression.
func (c *Client) Query(ctx context.Context, collectionName string, filter string, limit int, outputFields []string) ([]SearchResult, error) {
	opt := milvusclient.NewQueryOption(collectionName).
		WithFilter(filter).
		WithOutputFields(outputFields...)
	if limit > 0 {
		opt = opt.WithLimit(limit)
	}

	rs, err := c.client.Query(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	count := rs.ResultCount
	results := make([]SearchResult, count)
	for i := 0; i < count; i++ {
		results[i].Metadata = make(map[string]any)
	}

	if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
		for i, id := range idCol.Data() {
			if i < count {
				results[i].ID = id
			}
		}
	}

	for _, field := range rs.Fields {
		switch col := field.(type) {
		case *column.ColumnVarChar:
			for i, v := range col.Data() {
				if i < count {
					results[i].Metadata[col.Name()] = v
				}
			}
		case *column.ColumnInt64:
			for i, v := range col.Data() {
				if i < count {
					results[i].Metadata[col.Name()] = v
				}
			}
		case *column.ColumnBool:
			for i, v := range col.Data() {
				if i < count {
					results[i].Metadata[col.Name()] = v
				}
			}
		}
	}

	return results, nil
}

// DeleteByIDs deletes vectors by their primary keys.
func (c *Client) DeleteByIDs(ctx context.Context, collectionName string, ids []string) error {
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collectionName).WithStringIDs("id", ids)); err != nil {
		return fmt.Errorf("failed to delete by ids: %w", err)
	}
	return nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collectionName string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collectionName)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// GetCollectionStats returns the number of entities in a collection.
func (c *Client) GetCollectionStats(ctx context.Context, collectionName string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
