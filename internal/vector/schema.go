package vector

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/weaviate/weaviate/entities/models"

	"marketlens/internal/apperr"
)

// SchemaClient is bound to the collection being ensured.
type SchemaClient interface {
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	Describe(ctx context.Context) (*models.Class, error)
	AddProperty(ctx context.Context, property *models.Property) error
}

// Collection names a chunk class and the embedding it was built with.
// Dimension is fixed once the class exists.
type Collection struct {
	Name           string
	EmbeddingModel string
	Dimension      int
}

var descriptionRe = regexp.MustCompile(`model=(\S+) dim=(\d+)`)

func (c Collection) description() string {
	return fmt.Sprintf("Research document page chunks (model=%s dim=%d)", c.EmbeddingModel, c.Dimension)
}

// Properties lists the chunk metadata stored next to each vector.
func Properties() []*models.Property {
	return []*models.Property{
		{Name: "text", DataType: []string{"text"}},
		{Name: "docId", DataType: []string{"string"}},
		{Name: "source", DataType: []string{"string"}},
		{Name: "page", DataType: []string{"int"}},
	}
}

// EnsureSchema creates the collection or opens an existing one. Opening a
// collection recorded with another embedding model or dimension fails with a
// configuration error.
func EnsureSchema(ctx context.Context, client SchemaClient, col Collection) error {
	exists, err := client.Exists(ctx)
	if err != nil {
		return apperr.Storage("vector.EnsureSchema", err)
	}

	properties := Properties()

	if !exists {
		class := &models.Class{
			Class:       col.Name,
			Description: col.description(),
			Vectorizer:  "none",
			VectorIndexConfig: map[string]interface{}{
				"distance": "cosine",
			},
			Properties: properties,
		}
		if err := client.Create(ctx, class); err != nil {
			return apperr.Storage("vector.EnsureSchema", err)
		}
		return nil
	}

	class, err := client.Describe(ctx)
	if err != nil {
		return apperr.Storage("vector.EnsureSchema", err)
	}

	if err := checkEmbedding(class.Description, col); err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, p); err != nil {
				return apperr.Storage("vector.EnsureSchema", err)
			}
		}
	}

	return nil
}

// Classes created by hand carry no embedding note and are accepted as is.
func checkEmbedding(description string, col Collection) error {
	m := descriptionRe.FindStringSubmatch(description)
	if m == nil {
		return nil
	}
	dim, _ := strconv.Atoi(m[2])
	if m[1] != col.EmbeddingModel || dim != col.Dimension {
		return apperr.Configuration("vector.EnsureSchema",
			fmt.Errorf("collection %s was built with %s/%d, configured %s/%d",
				col.Name, m[1], dim, col.EmbeddingModel, col.Dimension))
	}
	return nil
}
