package vector

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// ClassSchema runs schema calls against one Weaviate class.
type ClassSchema struct {
	client *weaviate.Client
	class  string
}

func NewClassSchema(client *weaviate.Client, class string) *ClassSchema {
	return &ClassSchema{client: client, class: class}
}

func (s *ClassSchema) Exists(ctx context.Context) (bool, error) {
	return s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
}

// Create ignores the class name on c and uses the bound one.
func (s *ClassSchema) Create(ctx context.Context, c *models.Class) error {
	c.Class = s.class
	return s.client.Schema().ClassCreator().WithClass(c).Do(ctx)
}

func (s *ClassSchema) Describe(ctx context.Context) (*models.Class, error) {
	return s.client.Schema().ClassGetter().WithClassName(s.class).Do(ctx)
}

func (s *ClassSchema) AddProperty(ctx context.Context, p *models.Property) error {
	return s.client.Schema().PropertyCreator().WithClassName(s.class).WithProperty(p).Do(ctx)
}
