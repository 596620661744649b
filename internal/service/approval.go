package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"keyshop/internal/client"
	"keyshop/internal/config"
	"keyshop/internal/model"
	"keyshop/internal/quarantine"
	"keyshop/internal/repository"
)

const (
	ChannelAdmin  = "admin"
	ChannelBot    = "bot"
	ChannelSystem = "system"
)

// ApprovalService is the single convergence point for both approval
// channels. Whichever channel acts first wins; the loser observes
// ErrAlreadyProcessed. The initial status re-read is a best-effort race
// guard; the terminal transition itself is a conditional UPDATE and the
// claim/provision steps are independently idempotent, so even an overlapping
// double-invocation cannot deliver twice.
type ApprovalService interface {
	Approve(ctx context.Context, orderNo, channel, actor string) (*model.Order, error)
	Reject(ctx context.Context, orderNo, channel, actor, reason string) (*model.Order, error)
	Refund(ctx context.Context, orderNo, actor string) error
}

type approvalServiceImpl struct {
	orderRepo repository.OrderRepository
	keyRepo   repository.KeyRepository
	auditRepo repository.AuditRepository
	store     *quarantine.Store
	vpnClient client.VPNPanelClient
	vpnCfg    *config.VPN
	notifier  NotificationService
}

func NewApprovalService(
	orderRepo repository.OrderRepository,
	keyRepo repository.KeyRepository,
	auditRepo repository.AuditRepository,
	store *quarantine.Store,
	vpnClient client.VPNPanelClient,
	vpnCfg *config.VPN,
	notifier NotificationService,
) ApprovalService {
	return &approvalServiceImpl{
		orderRepo: orderRepo,
		keyRepo:   keyRepo,
		auditRepo: auditRepo,
		store:     store,
		vpnClient: vpnClient,
		vpnCfg:    vpnCfg,
		notifier:  notifier,
	}
}

func (s *approvalServiceImpl) Approve(ctx context.Context, orderNo, channel, actor string) (*model.Order, error) {
	order, err := s.orderRepo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.IsTerminal() {
		return order, ErrAlreadyProcessed
	}

	// Delivery runs before the terminal transition: if it fails, the order
	// must stay approvable.
	switch order.Kind {
	case model.OrderKindProduct:
		if _, err := s.keyRepo.Claim(ctx, order.ProductID, order.OrderNo, order.Quantity); err != nil {
			return order, err
		}
	case model.OrderKindVPN:
		if err := s.provision(ctx, order); err != nil {
			return order, err
		}
	default:
		return order, fmt.Errorf("order %s has unknown kind %q", orderNo, order.Kind)
	}

	ok, err := s.orderRepo.TransitionStatus(ctx, nil, orderNo,
		[]string{model.OrderStatusPending, model.OrderStatusVerifying},
		model.OrderStatusCompleted, "")
	if err != nil {
		return order, fmt.Errorf("complete order: %w", err)
	}
	if !ok {
		// the other channel won the race; delivery above was idempotent
		return order, ErrAlreadyProcessed
	}
	order.Status = model.OrderStatusCompleted

	if order.ScreenshotPath != "" {
		if err := s.store.Release(order.ScreenshotPath); err != nil {
			log.Println("release evidence:", err)
		}
	}

	s.audit(ctx, orderNo, "approve", channel, actor, "")
	s.notifier.Dispatch(ctx, order.UserID, NotificationOrderCompleted,
		"Order completed",
		fmt.Sprintf("Order %s has been approved and delivered.", orderNo),
		orderNo,
	)

	return order, nil
}

func (s *approvalServiceImpl) Reject(ctx context.Context, orderNo, channel, actor, reason string) (*model.Order, error) {
	order, err := s.orderRepo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.IsTerminal() {
		return order, ErrAlreadyProcessed
	}

	if reason == "" {
		reason = "rejected by " + channel
	} else {
		reason = fmt.Sprintf("%s (%s)", reason, channel)
	}

	ok, err := s.orderRepo.TransitionStatus(ctx, nil, orderNo,
		[]string{model.OrderStatusPending, model.OrderStatusVerifying},
		model.OrderStatusRejected, reason)
	if err != nil {
		return order, fmt.Errorf("reject order: %w", err)
	}
	if !ok {
		return order, ErrAlreadyProcessed
	}
	order.Status = model.OrderStatusRejected
	order.ReviewReason = reason

	// Evidence stays quarantined on reject, kept for audit and disputes.

	s.audit(ctx, orderNo, "reject", channel, actor, reason)
	s.notifier.Dispatch(ctx, order.UserID, NotificationOrderRejected,
		"Order rejected",
		fmt.Sprintf("Order %s was rejected: %s", orderNo, reason),
		orderNo,
	)

	return order, nil
}

// Refund is the one allowed transition out of completed. Administrative,
// outside the dual-channel gateway.
func (s *approvalServiceImpl) Refund(ctx context.Context, orderNo, actor string) error {
	ok, err := s.orderRepo.TransitionStatus(ctx, nil, orderNo,
		[]string{model.OrderStatusCompleted},
		model.OrderStatusRefunded, "refunded by "+actor)
	if err != nil {
		return fmt.Errorf("refund order: %w", err)
	}
	if !ok {
		return ErrAlreadyProcessed
	}

	s.audit(ctx, orderNo, "refund", ChannelAdmin, actor, "")
	return nil
}

// provision calls the external panel unless a previous attempt already
// succeeded. Provisioning is not safely repeatable against the panel (it
// would create a second client), so the provisioned status is the guard.
func (s *approvalServiceImpl) provision(ctx context.Context, order *model.Order) error {
	if order.VPNProvisionStatus == model.ProvisionStatusProvisioned {
		return nil
	}

	result, err := s.vpnClient.Provision(ctx, &client.ProvisionRequest{
		ServerID:    order.VPNServerID,
		UserID:      order.UserID,
		Devices:     order.VPNDevices,
		ExpiryDays:  order.VPNDurationDays,
		DataLimitGB: s.vpnCfg.DataLimitGB,
		Protocol:    s.vpnCfg.Protocol,
	})
	if err != nil {
		if merr := s.orderRepo.MarkProvisionFailed(ctx, order.OrderNo); merr != nil {
			log.Println("mark provision failed:", merr)
		}
		order.VPNProvisionStatus = model.ProvisionStatusFailed
		return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}

	expiry := result.ExpiryTime
	if expiry.IsZero() {
		expiry = time.Now().AddDate(0, 0, order.VPNDurationDays)
	}
	update := &model.Order{
		VPNClientEmail: result.ClientEmail,
		VPNClientUUID:  result.ClientUUID,
		VPNSubID:       result.SubID,
		VPNSubLink:     result.SubLink,
		VPNConfigLink:  result.ConfigLink,
		VPNProtocol:    result.Protocol,
		VPNExpiresAt:   &expiry,
	}
	if err := s.orderRepo.SaveProvisionResult(ctx, order.OrderNo, update); err != nil {
		return fmt.Errorf("store provision result: %w", err)
	}

	order.VPNProvisionStatus = model.ProvisionStatusProvisioned
	order.VPNClientEmail = result.ClientEmail
	order.VPNClientUUID = result.ClientUUID
	order.VPNSubID = result.SubID
	order.VPNSubLink = result.SubLink
	order.VPNConfigLink = result.ConfigLink
	order.VPNProtocol = result.Protocol
	order.VPNExpiresAt = &expiry
	return nil
}

func (s *approvalServiceImpl) audit(ctx context.Context, orderNo, action, channel, actor, reason string) {
	err := s.auditRepo.Record(ctx, &model.AuditLog{
		OrderNo: orderNo,
		Action:  action,
		Channel: channel,
		Actor:   actor,
		Reason:  reason,
	})
	if err != nil {
		log.Println("audit record:", err)
	}
}

// IsConflict reports whether err should surface as "already processed" /
// "insufficient stock" rather than a generic failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, repository.ErrInsufficientStock)
}
