package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"keyshop/internal/model"
)

func newCoupon(code string, usageLimit, perUserLimit int) *model.Coupon {
	return &model.Coupon{
		Code:          code,
		DiscountType:  "percent",
		DiscountValue: 10,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		UsageLimit:    usageLimit,
		PerUserLimit:  perUserLimit,
	}
}

func TestRedeemEnforcesGlobalCap(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewCouponRepository(db)
	ctx := context.Background()

	if err := db.Create(newCoupon("SAVE10", 2, 5)).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	var redeemed int
	for i := 0; i < 4; i++ {
		err := repo.Redeem(ctx, nil, "SAVE10", fmt.Sprintf("user-%d", i), fmt.Sprintf("ORD-%d", i))
		if errors.Is(err, ErrCouponExhausted) {
			continue
		}
		if err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
		redeemed++
	}

	if redeemed != 2 {
		t.Errorf("redeemed %d times, cap is 2", redeemed)
	}

	var coupon model.Coupon
	if err := db.First(&coupon, "code = ?", "SAVE10").Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if coupon.UsageCount > coupon.UsageLimit {
		t.Errorf("usage_count %d exceeds limit %d", coupon.UsageCount, coupon.UsageLimit)
	}
}

func TestRedeemEnforcesPerUserCap(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewCouponRepository(db)
	ctx := context.Background()

	if err := db.Create(newCoupon("SAVE10", 10, 1)).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	if err := repo.Redeem(ctx, nil, "SAVE10", "user-1", "ORD-1"); err != nil {
		t.Fatalf("first redeem: %v", err)
	}

	err := repo.Redeem(ctx, nil, "SAVE10", "user-1", "ORD-2")
	if !errors.Is(err, ErrCouponExhausted) {
		t.Fatalf("err = %v, want ErrCouponExhausted", err)
	}

	// a different user still has headroom
	if err := repo.Redeem(ctx, nil, "SAVE10", "user-2", "ORD-3"); err != nil {
		t.Fatalf("other user redeem: %v", err)
	}
}

func TestRedeemRejectsExpired(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewCouponRepository(db)
	ctx := context.Background()

	expired := newCoupon("OLD", 10, 1)
	expired.ValidTo = time.Now().Add(-time.Minute)
	if err := db.Create(expired).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	err := repo.Redeem(ctx, nil, "OLD", "user-1", "ORD-1")
	if !errors.Is(err, ErrCouponExpired) {
		t.Fatalf("err = %v, want ErrCouponExpired", err)
	}

	var coupon model.Coupon
	if err := db.First(&coupon, "code = ?", "OLD").Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if coupon.UsageCount != 0 {
		t.Errorf("expired coupon usage_count = %d, want 0", coupon.UsageCount)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewCouponRepository(db)

	err := repo.Redeem(context.Background(), nil, "NOPE", "user-1", "ORD-1")
	if !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("err = %v, want ErrCouponNotFound", err)
	}
}
