package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"marketlens/internal/apperr"
	"marketlens/internal/research"
	"marketlens/internal/vector"
)

const DefaultClassName = "ResearchDocChunk"

type Store struct {
	client    *weaviate.Client
	className string
}

func NewStore(client *weaviate.Client, className string) *Store {
	if className == "" {
		className = DefaultClassName
	}
	return &Store{client: client, className: className}
}

func (s *Store) ClassName() string {
	return s.className
}

func (s *Store) EnsureSchema(ctx context.Context, model string, dimension int) error {
	return vector.EnsureSchema(ctx, vector.NewClassSchema(s.client, s.className), vector.Collection{
		Name:           s.className,
		EmbeddingModel: model,
		Dimension:      dimension,
	})
}

// Insert writes records in a single batch. Re-inserting an existing ID
// replaces the stored object.
func (s *Store) Insert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(records))
	for _, rec := range records {
		objects = append(objects, &models.Object{
			Class: s.className,
			ID:    strfmt.UUID(rec.ID),
			Properties: map[string]interface{}{
				"text":   rec.Chunk.Text,
				"docId":  rec.Chunk.DocID,
				"source": rec.Chunk.Source,
				"page":   rec.Chunk.Page,
			},
			Vector: rec.Vector,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return apperr.Storage("weaviate.Insert", err)
	}

	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return apperr.Storage("weaviate.Insert",
				fmt.Errorf("object %s: %s", obj.ID, obj.Result.Errors.Error[0].Message))
		}
	}
	return nil
}

// Query returns up to k chunks nearest to vec by cosine distance.
func (s *Store) Query(ctx context.Context, vec []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return []vector.Match{}, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "docId"},
		{Name: "source"},
		{Name: "page"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, apperr.Storage("weaviate.Query", err)
	}
	if len(res.Errors) > 0 {
		if missingClass(res.Errors) {
			return []vector.Match{}, nil
		}
		return nil, apperr.Storage("weaviate.Query", fmt.Errorf("graphql error: %s", res.Errors[0].Message))
	}

	matches := []vector.Match{}
	for _, props := range s.rows(res.Data, "Get") {
		m := vector.Match{Chunk: chunkFromProps(props)}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				m.Distance = float32(d)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, apperr.Storage("weaviate.Count", err)
	}
	if len(res.Errors) > 0 {
		if missingClass(res.Errors) {
			return 0, nil
		}
		return 0, apperr.Storage("weaviate.Count", fmt.Errorf("graphql error: %s", res.Errors[0].Message))
	}

	for _, row := range s.rows(res.Data, "Aggregate") {
		if meta, ok := row["meta"].(map[string]interface{}); ok {
			if count, ok := meta["count"].(float64); ok {
				return int(count), nil
			}
		}
	}
	return 0, nil
}

// DeleteByDocID removes every chunk of one document.
func (s *Store) DeleteByDocID(ctx context.Context, docID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(s.className).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"docId"}).
			WithOperator(filters.Equal).
			WithValueString(docID)).
		Do(ctx)
	if err != nil {
		return apperr.Storage("weaviate.DeleteByDocID", err)
	}
	return nil
}

func (s *Store) rows(data map[string]models.JSONObject, op string) []map[string]interface{} {
	section, ok := data[op].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := section[s.className].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		if props, ok := r.(map[string]interface{}); ok {
			out = append(out, props)
		}
	}
	return out
}

func chunkFromProps(props map[string]interface{}) research.DocumentChunk {
	var c research.DocumentChunk
	if v, ok := props["text"].(string); ok {
		c.Text = v
	}
	if v, ok := props["docId"].(string); ok {
		c.DocID = v
	}
	if v, ok := props["source"].(string); ok {
		c.Source = v
	}
	if v, ok := props["page"].(float64); ok {
		c.Page = int(v)
	}
	return c
}

func missingClass(errs []*models.GraphQLError) bool {
	for _, e := range errs {
		if e != nil && strings.Contains(e.Message, "Cannot query field") {
			return true
		}
	}
	return false
}
