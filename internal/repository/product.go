package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"keyshop/internal/model"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	List(ctx context.Context) ([]*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{ID: "steam_key_30", Name: "Steam Wallet 30", Description: "30 USD Steam wallet code", Price: 320000, Currency: "RUB", Category: "gaming"},
		{ID: "office_2021", Name: "Office 2021 Pro", Description: "Office 2021 Professional Plus key", Price: 150000, Currency: "RUB", Category: "software"},
		{ID: "win11_pro", Name: "Windows 11 Pro", Description: "Windows 11 Pro retail key", Price: 120000, Currency: "RUB", Category: "software"},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) List(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Find(&products).Error

	if err != nil {
		return nil, err
	}

	return products, nil
}
