package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"shop-service/models"
	"shop-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var productColumns = []string{"id", "title", "description", "price", "stock", "sold_out", "is_new", "category", "created_at", "updated_at"}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func productRow(id uint, title string, price float64, stock int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(productColumns).
		AddRow(id, title, "", price, stock, false, false, "", now, now)
}

func TestGormFindByID_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products" WHERE "products"."id" = $1`)).
		WillReturnRows(productRow(5, "Mug", 12.5, 3))

	p, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Title)
	assert.Equal(t, 3, p.Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnRows(sqlmock.NewRows(productColumns))

	p, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
	assert.Nil(t, p)
}

func TestGormFindByIDs_MissingAreAbsent(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products" WHERE id IN`)).
		WillReturnRows(productRow(5, "Mug", 12.5, 3))

	got, err := repo.FindByIDs(context.Background(), []uint{5, 6})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, uint(5))
}

func TestGormCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()

	p := &models.Product{Title: "Poster", Price: 4, Stock: 10}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, uint(11), p.ID)
}

func TestGormUpdate_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), 42, map[string]interface{}{"price": 3.5})
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestGormCommitStock_LocksAndDecrements(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE "products"."id" = .+ FOR UPDATE`).
		WillReturnRows(productRow(5, "Mug", 12.5, 3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows(productColumns))
	mock.ExpectCommit()

	changes, err := repo.CommitStock(context.Background(), models.Cart{5: 3, 8: 1})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.StockChange{ProductID: 5, Quantity: 3, Previous: 3, Current: 0, SoldOut: true}, changes[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCommitStock_RollsBackOnError(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WillReturnRows(productRow(5, "Mug", 12.5, 3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	changes, err := repo.CommitStock(context.Background(), models.Cart{5: 1})
	assert.Error(t, err)
	assert.Nil(t, changes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCommitStock_FloorsAtZero(t *testing.T) {
	repo := repository.NewMemoryProductRepository(
		models.Product{ID: 1, Title: "Mug", Price: 10, Stock: 5},
		models.Product{ID: 2, Title: "Cap", Price: 8, Stock: 2},
	)
	ctx := context.Background()

	changes, err := repo.CommitStock(ctx, models.Cart{1: 2, 2: 4, 9: 1})
	require.NoError(t, err)
	assert.Len(t, changes, 2)

	mug, _ := repo.FindByID(ctx, 1)
	assert.Equal(t, 3, mug.Stock)
	assert.False(t, mug.SoldOut)

	hat, _ := repo.FindByID(ctx, 2)
	assert.Equal(t, 0, hat.Stock)
	assert.True(t, hat.SoldOut)
}

func TestMemoryUpdate_DoesNotClearSoldOut(t *testing.T) {
	repo := repository.NewMemoryProductRepository(models.Product{ID: 1, Title: "Mug", Stock: 0, SoldOut: true})
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, 1, map[string]interface{}{"stock": 4}))
	p, _ := repo.FindByID(ctx, 1)
	assert.Equal(t, 4, p.Stock)
	assert.True(t, p.SoldOut)
}

func TestMemoryList_FiltersAndPages(t *testing.T) {
	repo := repository.NewMemoryProductRepository(
		models.Product{Title: "A", Category: "mugs"},
		models.Product{Title: "B", Category: "caps"},
		models.Product{Title: "C", Category: "mugs"},
	)
	products, total, err := repo.List(context.Background(), "mugs", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, products, 1)
	assert.Equal(t, "A", products[0].Title)
}
