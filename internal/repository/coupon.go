package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"keyshop/internal/model"
)

var (
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponExpired   = errors.New("coupon expired or not yet valid")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
)

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)

	// Redeem atomically consumes one use of the coupon for the given user and
	// order. The global cap is enforced by an increment-with-cap-check UPDATE
	// so two concurrent redemptions can never both pass on a stale read; the
	// per-user cap is checked inside the same transaction.
	Redeem(ctx context.Context, tx *gorm.DB, code, userID, orderNo string) error
}

type couponRepoImpl struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepoImpl{
		db: db,
	}
}

func (r *couponRepoImpl) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&coupon).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}

	return &coupon, nil
}

func (r *couponRepoImpl) Redeem(ctx context.Context, tx *gorm.DB, code, userID, orderNo string) error {
	if tx == nil {
		tx = r.db
	}

	return tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		coupon, err := r.findInTx(ctx, tx, code)
		if err != nil {
			return err
		}

		now := time.Now()
		if now.Before(coupon.ValidFrom) || now.After(coupon.ValidTo) {
			return ErrCouponExpired
		}

		var userUses int64
		if err := tx.Model(&model.CouponRedemption{}).
			Where("coupon_code = ? AND user_id = ?", code, userID).
			Count(&userUses).Error; err != nil {
			return err
		}
		if userUses >= int64(coupon.PerUserLimit) {
			return ErrCouponExhausted
		}

		result := tx.Model(&model.Coupon{}).
			Where("code = ? AND usage_count < usage_limit", code).
			Updates(map[string]interface{}{
				"usage_count": gorm.Expr("usage_count + 1"),
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCouponExhausted
		}

		return tx.Create(&model.CouponRedemption{
			CouponCode: code,
			UserID:     userID,
			OrderNo:    orderNo,
		}).Error
	})
}

func (r *couponRepoImpl) findInTx(ctx context.Context, tx *gorm.DB, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := tx.WithContext(ctx).
		Where("code = ?", code).
		First(&coupon).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}

	return &coupon, nil
}
