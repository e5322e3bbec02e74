package repositories_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"catalog/internal/database"
	"catalog/internal/models"
	"catalog/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoFactory func(t *testing.T) repositories.ProductRepository

func stores() map[string]repoFactory {
	return map[string]repoFactory{
		"gorm": func(t *testing.T) repositories.ProductRepository {
			db, err := database.Open(database.Options{
				Driver: database.DriverSQLite,
				DSN:    filepath.Join(t.TempDir(), "catalog.sqlite"),
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = database.Close(db) })
			return repositories.NewGORMProductRepository(db, 5*time.Second)
		},
		"memory": func(*testing.T) repositories.ProductRepository {
			return repositories.NewMemoryProductRepository()
		},
	}
}

func seed(t *testing.T, repo repositories.ProductRepository) {
	t.Helper()
	desc := "sem fio"
	products := []models.Product{
		{Name: "Mouse", Price: 49.9, Description: &desc},
		{Name: "Teclado", Price: 120},
		{Name: "Monitor", Price: 899.99, Description: strPtr("Tela IPS")},
		{Name: "mousepad", Price: 19.9},
	}
	for i := range products {
		require.NoError(t, repo.Create(context.Background(), &products[i]))
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func names(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func TestProductRepository_Create(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			p := &models.Product{ID: 42, Name: "Mouse", Price: 49.9}
			require.NoError(t, repo.Create(ctx, p))
			assert.Equal(t, uint(1), p.ID, "ids are assigned by the store")
			assert.False(t, p.CreatedAt.IsZero())
			assert.True(t, p.CreatedAt.Equal(p.UpdatedAt))

			second := &models.Product{Name: "Teclado", Price: 120}
			require.NoError(t, repo.Create(ctx, second))
			assert.Equal(t, uint(2), second.ID)

			got, err := repo.FindByID(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "Mouse", got.Name)
			assert.Nil(t, got.Description)
		})
	}
}

func TestProductRepository_FindAll(t *testing.T) {
	cases := []struct {
		name  string
		opts  repositories.ListOptions
		want  []string
		total int64
	}{
		{
			name:  "everything in id order",
			opts:  repositories.ListOptions{},
			want:  []string{"Mouse", "Teclado", "Monitor", "mousepad"},
			total: 4,
		},
		{
			name:  "name search ignores case",
			opts:  repositories.ListOptions{Filter: repositories.ProductFilter{Field: repositories.FieldName, Search: "MOUSE"}},
			want:  []string{"Mouse", "mousepad"},
			total: 2,
		},
		{
			name:  "description search skips null descriptions",
			opts:  repositories.ListOptions{Filter: repositories.ProductFilter{Field: repositories.FieldDescription, Search: "i"}},
			want:  []string{"Mouse", "Monitor"},
			total: 2,
		},
		{
			name: "inclusive price range",
			opts: repositories.ListOptions{Filter: repositories.ProductFilter{
				Field: repositories.FieldPrice, MinPrice: floatPtr(49.9), MaxPrice: floatPtr(120),
			}},
			want:  []string{"Mouse", "Teclado"},
			total: 2,
		},
		{
			name: "price bounds ignored for text fields",
			opts: repositories.ListOptions{Filter: repositories.ProductFilter{
				Field: repositories.FieldName, MinPrice: floatPtr(500),
			}},
			want:  []string{"Mouse", "Teclado", "Monitor", "mousepad"},
			total: 4,
		},
		{
			name:  "page window keeps the total",
			opts:  repositories.ListOptions{Limit: 2, Offset: 2},
			want:  []string{"Monitor", "mousepad"},
			total: 4,
		},
		{
			name:  "offset past the end",
			opts:  repositories.ListOptions{Limit: 2, Offset: 10},
			want:  []string{},
			total: 4,
		},
		{
			name:  "descending order",
			opts:  repositories.ListOptions{Order: repositories.OrderIDDesc, Limit: 2},
			want:  []string{"mousepad", "Monitor"},
			total: 4,
		},
	}

	for store, open := range stores() {
		t.Run(store, func(t *testing.T) {
			repo := open(t)
			seed(t, repo)

			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					got, total, err := repo.FindAll(context.Background(), tc.opts)
					require.NoError(t, err)
					assert.Equal(t, tc.want, names(got))
					assert.Equal(t, tc.total, total)
				})
			}
		})
	}
}

func TestProductRepository_Save(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()
			seed(t, repo)

			p, err := repo.FindByID(ctx, 1)
			require.NoError(t, err)
			created := p.CreatedAt

			time.Sleep(5 * time.Millisecond)
			p.Price = 59.9
			p.Description = nil
			require.NoError(t, repo.Save(ctx, p))

			got, err := repo.FindByID(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "Mouse", got.Name)
			assert.Equal(t, 59.9, got.Price)
			assert.Nil(t, got.Description)
			assert.True(t, got.CreatedAt.Equal(created))
			assert.True(t, got.UpdatedAt.After(got.CreatedAt))

			err = repo.Save(ctx, &models.Product{ID: 99, Name: "Fantasma", Price: 1})
			assert.ErrorIs(t, err, repositories.ErrProductNotFound)
			_, err = repo.FindByID(ctx, 99)
			assert.ErrorIs(t, err, repositories.ErrProductNotFound, "save must never insert")
		})
	}
}

func TestProductRepository_Delete(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()
			seed(t, repo)

			p, err := repo.FindByID(ctx, 4)
			require.NoError(t, err)
			require.NoError(t, repo.Delete(ctx, p))

			_, err = repo.FindByID(ctx, 4)
			assert.ErrorIs(t, err, repositories.ErrProductNotFound)
			assert.ErrorIs(t, repo.Delete(ctx, p), repositories.ErrProductNotFound)

			// the highest id is gone but never handed out again
			next := &models.Product{Name: "Webcam", Price: 200}
			require.NoError(t, repo.Create(ctx, next))
			assert.Equal(t, uint(5), next.ID)

			_, total, err := repo.FindAll(ctx, repositories.ListOptions{})
			require.NoError(t, err)
			assert.EqualValues(t, 4, total)
		})
	}
}

func TestGORMProductRepository_Timeout(t *testing.T) {
	db, err := database.Open(database.Options{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "catalog.sqlite"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	repo := repositories.NewGORMProductRepository(db, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.FindByID(ctx, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repositories.ErrProductNotFound)
	assert.ErrorIs(t, err, context.Canceled, fmt.Sprintf("got %v", err))
}
