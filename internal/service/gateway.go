package service

import (
	"context"
	"fmt"

	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/observability"
)

type categoryFunc func(ctx context.Context, loc models.Location) (any, error)

// Gateway composes the location resolver with one resolver per category.
// It holds no per-request state; all coordination happens in the store.
type Gateway struct {
	locations *LocationResolver
	resolvers map[models.Category]categoryFunc
	order     []models.Category
}

// NewGateway returns a Gateway with no categories. Add them with Register.
func NewGateway(locations *LocationResolver) *Gateway {
	return &Gateway{
		locations: locations,
		resolvers: make(map[models.Category]categoryFunc),
	}
}

// Register adds r under its category, replacing any earlier registration.
func Register[T any](g *Gateway, r *CategoryResolver[T]) {
	if _, exists := g.resolvers[r.category]; !exists {
		g.order = append(g.order, r.category)
	}
	g.resolvers[r.category] = func(ctx context.Context, loc models.Location) (any, error) {
		return r.Resolve(ctx, loc)
	}
}

// Categories lists registered categories in registration order.
func (g *Gateway) Categories() []models.Category {
	out := make([]models.Category, len(g.order))
	copy(out, g.order)
	return out
}

// Location resolves search text to a stored location.
func (g *Gateway) Location(ctx context.Context, query string) (models.Location, error) {
	observability.RecordQuery(NormalizeQuery(query))
	return g.locations.Resolve(ctx, query)
}

// LocationByID returns a previously stored location.
func (g *Gateway) LocationByID(ctx context.Context, id int64) (models.Location, error) {
	return g.locations.ByID(ctx, id)
}

// Records resolves category records for a stored location. The result is a
// slice of the category's record type.
func (g *Gateway) Records(ctx context.Context, category models.Category, loc models.Location) (any, error) {
	resolve, ok := g.resolvers[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return resolve(ctx, loc)
}
