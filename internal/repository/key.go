package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"keyshop/internal/model"
)

var ErrInsufficientStock = errors.New("insufficient stock")

type KeyRepository interface {
	// Claim atomically marks n unsold keys of a product as sold to the given
	// order. All-or-nothing: if fewer than n keys are claimed the transaction
	// rolls back with ErrInsufficientStock. Re-claiming for an order that
	// already holds keys returns the existing keys untouched.
	Claim(ctx context.Context, productID, orderNo string, n int) ([]*model.ProductKey, error)

	DeliveredKeys(ctx context.Context, orderNo string) ([]*model.ProductKey, error)
	AddKeys(ctx context.Context, keys []*model.ProductKey) error
	CountUnsold(ctx context.Context, productID string) (int64, error)
}

type keyRepoImpl struct {
	db *gorm.DB
}

func NewKeyRepository(db *gorm.DB) KeyRepository {
	return &keyRepoImpl{
		db: db,
	}
}

func (r *keyRepoImpl) Claim(ctx context.Context, productID, orderNo string, n int) ([]*model.ProductKey, error) {
	var claimed []*model.ProductKey

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// idempotency guard against duplicate-approval races
		var existing []*model.ProductKey
		if err := tx.Where("order_no = ?", orderNo).Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 {
			claimed = existing
			return nil
		}

		var candidates []*model.ProductKey
		if err := tx.
			Where("product_id = ? AND sold = ?", productID, false).
			Order("id").
			Limit(n).
			Find(&candidates).Error; err != nil {
			return err
		}
		if len(candidates) < n {
			return ErrInsufficientStock
		}

		ids := make([]uint, len(candidates))
		for i, k := range candidates {
			ids[i] = k.ID
		}

		now := time.Now()
		// claim-if-still-unsold: the sold guard in the WHERE is what makes
		// concurrent claims for the same keys lose instead of double-selling
		result := tx.Model(&model.ProductKey{}).
			Where("id IN ? AND sold = ?", ids, false).
			Updates(map[string]interface{}{
				"sold":     true,
				"order_no": orderNo,
				"sold_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != int64(n) {
			return ErrInsufficientStock
		}

		// recompute the cached counter from the authoritative unsold count
		var unsold int64
		if err := tx.Model(&model.ProductKey{}).
			Where("product_id = ? AND sold = ?", productID, false).
			Count(&unsold).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Product{}).
			Where("id = ?", productID).
			Update("stock", unsold).Error; err != nil {
			return err
		}

		for _, k := range candidates {
			k.Sold = true
			k.OrderNo = orderNo
			k.SoldAt = &now
		}
		claimed = candidates
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("claim keys: %w", err)
	}

	return claimed, nil
}

func (r *keyRepoImpl) DeliveredKeys(ctx context.Context, orderNo string) ([]*model.ProductKey, error) {
	var keys []*model.ProductKey
	err := r.db.WithContext(ctx).
		Where("order_no = ?", orderNo).
		Order("id").
		Find(&keys).Error

	if err != nil {
		return nil, err
	}

	return keys, nil
}

func (r *keyRepoImpl) AddKeys(ctx context.Context, keys []*model.ProductKey) error {
	if len(keys) == 0 {
		return nil
	}
	productID := keys[0].ProductID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&keys).Error; err != nil {
			return err
		}

		var unsold int64
		if err := tx.Model(&model.ProductKey{}).
			Where("product_id = ? AND sold = ?", productID, false).
			Count(&unsold).Error; err != nil {
			return err
		}
		return tx.Model(&model.Product{}).
			Where("id = ?", productID).
			Update("stock", unsold).Error
	})
}

func (r *keyRepoImpl) CountUnsold(ctx context.Context, productID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProductKey{}).
		Where("product_id = ? AND sold = ?", productID, false).
		Count(&count).Error

	return count, err
}
