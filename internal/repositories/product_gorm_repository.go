package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog/internal/models"

	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
// A positive timeout bounds every operation, connection acquisition included.
func NewGORMProductRepository(db *gorm.DB, timeout time.Duration) *GORMProductRepository {
	return &GORMProductRepository{
		db:      db,
		timeout: timeout,
	}
}

func (r *GORMProductRepository) withContext(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if r.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		return r.db.WithContext(ctx), cancel
	}
	return r.db.WithContext(ctx), func() {}
}

// Create inserts a new product. ID and timestamps are assigned by the store.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	db, cancel := r.withContext(ctx)
	defer cancel()

	product.ID = 0
	if err := db.Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// FindAll retrieves a page of products matching the filter.
func (r *GORMProductRepository) FindAll(ctx context.Context, opts ListOptions) ([]models.Product, int64, error) {
	db, cancel := r.withContext(ctx)
	defer cancel()

	query := applyFilter(db.Model(&models.Product{}), opts.Filter).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	products := make([]models.Product, 0)
	page := query.Order(opts.order())
	if opts.Limit > 0 {
		page = page.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		page = page.Offset(opts.Offset)
	}
	if err := page.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

func applyFilter(query *gorm.DB, f ProductFilter) *gorm.DB {
	switch f.Field {
	case FieldName, FieldDescription:
		if f.Search != "" {
			query = query.Where(f.Field+" LIKE ?", "%"+f.Search+"%")
		}
	case FieldPrice:
		if f.MinPrice != nil {
			query = query.Where("preco >= ?", *f.MinPrice)
		}
		if f.MaxPrice != nil {
			query = query.Where("preco <= ?", *f.MaxPrice)
		}
	}
	return query
}

// FindByID retrieves a single product by its ID.
func (r *GORMProductRepository) FindByID(ctx context.Context, id uint) (*models.Product, error) {
	db, cancel := r.withContext(ctx)
	defer cancel()

	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product by ID %d: %w", id, err)
	}
	return &product, nil
}

// Save persists in-place changes to a loaded product and refreshes UpdatedAt.
// Unlike gorm's Save it never inserts, so a deleted id cannot come back.
func (r *GORMProductRepository) Save(ctx context.Context, product *models.Product) error {
	db, cancel := r.withContext(ctx)
	defer cancel()

	res := db.Model(product).Select("nome", "preco", "descricao").Updates(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Delete removes the product permanently.
func (r *GORMProductRepository) Delete(ctx context.Context, product *models.Product) error {
	db, cancel := r.withContext(ctx)
	defer cancel()

	res := db.Delete(&models.Product{}, product.ID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
