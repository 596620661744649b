package model

import (
	"strings"
	"time"
)

const (
	OrderKindProduct = "product"
	OrderKindVPN     = "vpn"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusVerifying = "verifying"
	OrderStatusCompleted = "completed"
	OrderStatusRejected  = "rejected"
	OrderStatusRefunded  = "refunded"
)

const (
	ProvisionStatusPending     = "pending"
	ProvisionStatusProvisioned = "provisioned"
	ProvisionStatusFailed      = "failed"
)

const (
	FraudFlagDuplicateScreenshot = "duplicate-screenshot"
	FraudFlagTransactionIDReuse  = "transaction-id-reuse"
	FraudFlagHighAmount          = "high-amount"
)

type Order struct {
	ID      uint   `gorm:"primaryKey"`
	OrderNo string `gorm:"size:64;uniqueIndex;not null"`
	UserID  string `gorm:"size:64;index;not null"`
	Kind    string `gorm:"size:16;index;not null"` // product | vpn
	Status  string `gorm:"size:16;index;not null"` // pending, verifying, completed, rejected, refunded

	Quantity       int    `gorm:"not null;default:1"`
	TotalAmount    int64  `gorm:"not null"` // minor units
	PaymentMethod  string `gorm:"size:32;not null"`
	CouponCode     string `gorm:"size:64"`
	DiscountAmount int64

	ScreenshotPath string `gorm:"size:255"`
	ScreenshotHash string `gorm:"size:64;index"`

	OCRProcessed     bool
	OCRTransactionID string `gorm:"size:128;index"`
	OCRAmount        string `gorm:"size:32"`
	OCRConfidence    float64

	FraudFlags   string `gorm:"size:255"` // comma-joined, additive
	ManualReview bool
	ReviewReason string `gorm:"size:255"`

	// Only meaningful while status is pending.
	PaymentDeadline time.Time

	// product orders
	ProductID string `gorm:"size:64;index"`

	// vpn orders
	VPNServerID        string `gorm:"size:64"`
	VPNDevices         int
	VPNDurationDays    int
	VPNProvisionStatus string `gorm:"size:16"`
	VPNClientEmail     string `gorm:"size:128"`
	VPNClientUUID      string `gorm:"size:64"`
	VPNSubID           string `gorm:"size:64"`
	VPNSubLink         string `gorm:"size:255"`
	VPNConfigLink      string `gorm:"size:255"`
	VPNProtocol        string `gorm:"size:16"`
	VPNExpiresAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted ||
		o.Status == OrderStatusRejected ||
		o.Status == OrderStatusRefunded
}

// FraudFlagList splits the stored flag set, insertion order preserved.
func (o *Order) FraudFlagList() []string {
	if o.FraudFlags == "" {
		return nil
	}
	return strings.Split(o.FraudFlags, ",")
}

// AddFraudFlag appends a flag if not already present. Flags are additive and
// never retracted.
func (o *Order) AddFraudFlag(flag string) {
	for _, f := range o.FraudFlagList() {
		if f == flag {
			return
		}
	}
	if o.FraudFlags == "" {
		o.FraudFlags = flag
		return
	}
	o.FraudFlags = o.FraudFlags + "," + flag
}
