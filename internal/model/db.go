package model

import "time"

type Product struct {
	ID          string `gorm:"primaryKey;size:64;not null"` // product sku
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"size:255"`
	Price       int64  `gorm:"not null"` // minor units
	Currency    string `gorm:"size:8;not null"`
	Category    string `gorm:"size:32;index"`
	// Cached counter, recomputed from count(unsold) after every claim.
	Stock     int `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductKey is one redeemable record in a product's key pool. It transitions
// unsold -> sold exactly once and is never attached to two orders.
type ProductKey struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID string `gorm:"size:64;index;not null"`
	Serial    string `gorm:"size:255;not null"`
	Login     string `gorm:"size:128"`
	Extra     string `gorm:"size:255"`
	Sold      bool   `gorm:"not null;default:false;index"`
	OrderNo   string `gorm:"size:64;index"` // buyer order, set when sold
	SoldAt    *time.Time
	CreatedAt time.Time
}

type Coupon struct {
	Code          string `gorm:"primaryKey;size:64;not null"`
	DiscountType  string `gorm:"size:16;not null"` // percent | fixed
	DiscountValue int64  `gorm:"not null"`
	ValidFrom     time.Time
	ValidTo       time.Time
	UsageLimit    int `gorm:"not null"`
	UsageCount    int `gorm:"not null;default:0"`
	PerUserLimit  int `gorm:"not null;default:1"`
	Category      string `gorm:"size:32"` // empty = any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CouponRedemption struct {
	ID         uint   `gorm:"primaryKey"`
	CouponCode string `gorm:"size:64;index;not null"`
	UserID     string `gorm:"size:64;index;not null"`
	OrderNo    string `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt  time.Time
}

type Notification struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"size:64;index;not null"`
	Type      string `gorm:"size:32;not null"`
	Title     string `gorm:"size:128;not null"`
	Message   string `gorm:"size:512"`
	OrderNo   string `gorm:"size:64;index"`
	Read      bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

type AuditLog struct {
	ID        uint   `gorm:"primaryKey"`
	OrderNo   string `gorm:"size:64;index;not null"`
	Action    string `gorm:"size:32;not null"` // approve | reject | expire | refund
	Channel   string `gorm:"size:32;not null"` // admin | bot | system
	Actor     string `gorm:"size:64"`
	Reason    string `gorm:"size:255"`
	CreatedAt time.Time
}
