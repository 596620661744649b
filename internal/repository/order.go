package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"keyshop/internal/model"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByOrderNo(ctx context.Context, orderNo string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)

	// TransitionStatus conditionally moves an order between statuses. It is
	// the single atomic write every state change goes through: the UPDATE
	// carries the allowed source statuses so a concurrent transition loses
	// cleanly (returns false) instead of overwriting a terminal state.
	TransitionStatus(ctx context.Context, tx *gorm.DB, orderNo string, from []string, to, reason string) (bool, error)

	ExistsScreenshotHash(ctx context.Context, hash string) (bool, error)
	ExistsTransactionID(ctx context.Context, transactionID string) (bool, error)
	ExistsScreenshotPath(ctx context.Context, path string) (bool, error)

	ListExpiredPending(ctx context.Context, now time.Time) ([]*model.Order, error)

	MarkProvisionFailed(ctx context.Context, orderNo string) error
	SaveProvisionResult(ctx context.Context, orderNo string, result *model.Order) error

	AnonymizeUser(ctx context.Context, userID string) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("order_no = ?", orderNo).
		First(&order).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) TransitionStatus(ctx context.Context, tx *gorm.DB, orderNo string, from []string, to, reason string) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if reason != "" {
		updates["review_reason"] = reason
	}

	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("order_no = ? AND status IN ?", orderNo, from).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *orderRepoImpl) ExistsScreenshotHash(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("screenshot_hash = ?", hash).
		Where("status <> ?", model.OrderStatusRejected).
		Count(&count).Error

	return count > 0, err
}

func (r *orderRepoImpl) ExistsTransactionID(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("ocr_transaction_id = ?", transactionID).
		Where("status <> ?", model.OrderStatusRejected).
		Count(&count).Error

	return count > 0, err
}

func (r *orderRepoImpl) ExistsScreenshotPath(ctx context.Context, path string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("screenshot_path = ?", path).
		Count(&count).Error

	return count > 0, err
}

func (r *orderRepoImpl) ListExpiredPending(ctx context.Context, now time.Time) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OrderStatusPending).
		Where("payment_deadline < ?", now).
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) MarkProvisionFailed(ctx context.Context, orderNo string) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_no = ?", orderNo).
		Where("vpn_provision_status <> ?", model.ProvisionStatusProvisioned).
		Updates(map[string]interface{}{
			"vpn_provision_status": model.ProvisionStatusFailed,
			"updated_at":           time.Now(),
		}).Error
}

// SaveProvisionResult stores the issued credential bundle. The conditional
// WHERE keeps a stale retry from overwriting an existing successful bundle.
func (r *orderRepoImpl) SaveProvisionResult(ctx context.Context, orderNo string, result *model.Order) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_no = ?", orderNo).
		Where("vpn_provision_status <> ?", model.ProvisionStatusProvisioned).
		Updates(map[string]interface{}{
			"vpn_provision_status": model.ProvisionStatusProvisioned,
			"vpn_client_email":     result.VPNClientEmail,
			"vpn_client_uuid":      result.VPNClientUUID,
			"vpn_sub_id":           result.VPNSubID,
			"vpn_sub_link":         result.VPNSubLink,
			"vpn_config_link":      result.VPNConfigLink,
			"vpn_protocol":         result.VPNProtocol,
			"vpn_expires_at":       result.VPNExpiresAt,
			"updated_at":           time.Now(),
		}).Error
}

// AnonymizeUser blanks the user linkage on all of a user's orders. Orders are
// never hard-deleted; terminal rows stay for audit and accounting.
func (r *orderRepoImpl) AnonymizeUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"user_id":    "anonymized",
			"updated_at": time.Now(),
		}).Error
}
