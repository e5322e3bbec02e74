package repositories

import (
	"context"
	"errors"

	"catalog/internal/models"
)

// ErrProductNotFound is returned when no product matches the requested id.
var ErrProductNotFound = errors.New("product not found")

// Filterable product fields.
const (
	FieldName        = "nome"
	FieldDescription = "descricao"
	FieldPrice       = "preco"
)

// Supported orderings. OrderIDAsc is the default.
const (
	OrderIDAsc  = "id ASC"
	OrderIDDesc = "id DESC"
)

// ProductFilter narrows a listing. Search applies to the name or description
// field; MinPrice and MaxPrice are inclusive and only apply to the price field.
type ProductFilter struct {
	Field    string
	Search   string
	MinPrice *float64
	MaxPrice *float64
}

// ListOptions describes one page of a listing.
type ListOptions struct {
	Filter ProductFilter
	Order  string
	Limit  int
	Offset int
}

func (o ListOptions) order() string {
	switch o.Order {
	case OrderIDDesc:
		return OrderIDDesc
	default:
		return OrderIDAsc
	}
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	// FindAll returns one page of matching products and the number of
	// products matching the filter regardless of the page window.
	FindAll(ctx context.Context, opts ListOptions) ([]models.Product, int64, error)
	FindByID(ctx context.Context, id uint) (*models.Product, error)
	Save(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, product *models.Product) error
}
