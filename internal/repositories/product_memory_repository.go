package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"catalog/internal/models"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
// Nothing survives a restart; it backs DB_DRIVER=memory and tests.
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[uint]models.Product
	lastID   uint
	now      func() time.Time
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[uint]models.Product),
		now:      time.Now,
	}
}

// Create adds a new product with the next id. Ids are never reused.
func (r *MemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	now := r.now()
	product.ID = r.lastID
	product.CreatedAt = now
	product.UpdatedAt = now
	r.products[product.ID] = clone(*product)
	return nil
}

// FindAll returns a page of matching products.
func (r *MemoryProductRepository) FindAll(_ context.Context, opts ListOptions) ([]models.Product, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if matches(p, opts.Filter) {
			matched = append(matched, clone(p))
		}
	}
	desc := opts.order() == OrderIDDesc
	sort.Slice(matched, func(i, j int) bool {
		if desc {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return []models.Product{}, total, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, total, nil
}

// matches mirrors the SQL filter: LIKE is case-insensitive for ASCII in sqlite.
func matches(p models.Product, f ProductFilter) bool {
	switch f.Field {
	case FieldName:
		return f.Search == "" || containsFold(p.Name, f.Search)
	case FieldDescription:
		return f.Search == "" || (p.Description != nil && containsFold(*p.Description, f.Search))
	case FieldPrice:
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			return false
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			return false
		}
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// FindByID returns a product by its ID.
func (r *MemoryProductRepository) FindByID(_ context.Context, id uint) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	p := clone(product)
	return &p, nil
}

// Save stores the changed fields of an existing product.
func (r *MemoryProductRepository) Save(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.products[product.ID]
	if !ok {
		return ErrProductNotFound
	}
	now := r.now()
	if !now.After(stored.UpdatedAt) {
		now = stored.UpdatedAt.Add(time.Nanosecond)
	}
	product.CreatedAt = stored.CreatedAt
	product.UpdatedAt = now
	r.products[product.ID] = clone(*product)
	return nil
}

// Delete removes a product.
func (r *MemoryProductRepository) Delete(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[product.ID]; !ok {
		return ErrProductNotFound
	}
	delete(r.products, product.ID)
	return nil
}

func clone(p models.Product) models.Product {
	if p.Description != nil {
		d := *p.Description
		p.Description = &d
	}
	return p
}
