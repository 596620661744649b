package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"keyshop/internal/client"
	"keyshop/internal/config"
	"keyshop/internal/dto"
	"keyshop/internal/fraud"
	"keyshop/internal/model"
	"keyshop/internal/quarantine"
	"keyshop/internal/repository"
)

const (
	PaymentMethodTransfer = "transfer"
	PaymentMethodWallet   = "wallet"
	PaymentMethodCard     = "card"
)

var allowedEvidenceExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type OrderService interface {
	Create(ctx context.Context, userID string, req *dto.CreateOrderRequest, screenshot []byte, ext string) (*model.Order, error)
	Get(ctx context.Context, userID, orderNo string) (*dto.OrderResponse, error)
	List(ctx context.Context, userID string) ([]*model.Order, error)
	ListProducts(ctx context.Context) ([]*model.Product, error)
	Restock(ctx context.Context, productID string, keys []dto.RestockKey) (int64, error)
	AnonymizeAccount(ctx context.Context, userID string) error
}

type orderServiceImpl struct {
	db          *gorm.DB
	cfg         *config.Config
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	keyRepo     repository.KeyRepository
	couponRepo  repository.CouponRepository
	store       *quarantine.Store
	fraudEngine *fraud.Engine
	ocrClient   client.OCRClient
	checkout    client.CheckoutClient
	notifier    NotificationService
}

func NewOrderService(
	db *gorm.DB,
	cfg *config.Config,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	keyRepo repository.KeyRepository,
	couponRepo repository.CouponRepository,
	store *quarantine.Store,
	fraudEngine *fraud.Engine,
	ocrClient client.OCRClient,
	checkout client.CheckoutClient,
	notifier NotificationService,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		cfg:         cfg,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		keyRepo:     keyRepo,
		couponRepo:  couponRepo,
		store:       store,
		fraudEngine: fraudEngine,
		ocrClient:   ocrClient,
		checkout:    checkout,
		notifier:    notifier,
	}
}

func (s *orderServiceImpl) Create(ctx context.Context, userID string, req *dto.CreateOrderRequest, screenshot []byte, ext string) (*model.Order, error) {
	order := &model.Order{
		OrderNo:       newOrderNo(),
		UserID:        userID,
		Kind:          req.Kind,
		Status:        model.OrderStatusPending,
		PaymentMethod: req.PaymentMethod,
	}

	category, err := s.applyPayload(ctx, order, req)
	if err != nil {
		return nil, err
	}

	if req.PaymentMethod != PaymentMethodTransfer &&
		req.PaymentMethod != PaymentMethodWallet &&
		req.PaymentMethod != PaymentMethodCard {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, req.PaymentMethod)
	}

	var coupon *model.Coupon
	if req.CouponCode != "" {
		coupon, err = s.couponRepo.FindByCode(ctx, req.CouponCode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if coupon.Category != "" && coupon.Category != category {
			return nil, fmt.Errorf("%w: coupon not valid for this category", ErrValidation)
		}
		order.CouponCode = coupon.Code
		order.DiscountAmount = discountFor(coupon, order.TotalAmount)
		order.TotalAmount -= order.DiscountAmount
	}

	// Evidence is validated and written before anything is persisted; a bad
	// upload rejects the whole request with no side effects.
	hasEvidence := req.PaymentMethod != PaymentMethodCard
	if hasEvidence {
		if err := s.attachEvidence(order, screenshot, ext); err != nil {
			return nil, err
		}
	} else {
		if req.PaymentToken == "" {
			return nil, fmt.Errorf("%w: card payment requires a payment token", ErrValidation)
		}
		amount := decimal.NewFromInt(order.TotalAmount).Div(decimal.NewFromInt(100))
		if _, err := s.checkout.ChargeOneTime(ctx, req.PaymentToken, amount.StringFixed(2)); err != nil {
			return nil, fmt.Errorf("card charge: %w", err)
		}
	}

	if hasEvidence && s.cfg.OCR.Enabled {
		s.runOCR(ctx, order)
	}

	if hasEvidence {
		if err := s.scoreFraud(ctx, order); err != nil {
			return nil, err
		}
	}

	// OCR disabled (or failed) keeps the order pending for fully manual
	// handling; only an actual extraction run advances it to verifying.
	if order.OCRProcessed {
		order.Status = model.OrderStatusVerifying
	}
	order.PaymentDeadline = time.Now().Add(time.Duration(s.cfg.Orders.PaymentWindowMinutes) * time.Minute)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if coupon != nil {
			if err := s.couponRepo.Redeem(ctx, tx, coupon.Code, userID, order.OrderNo); err != nil {
				return fmt.Errorf("redeem coupon: %w", err)
			}
		}
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order: %w", err)
		}
		return nil
	})
	if err != nil {
		// the order row never existed; drop the quarantined evidence
		if order.ScreenshotPath != "" {
			if derr := s.store.Delete(order.ScreenshotPath); derr != nil {
				log.Println("drop evidence of failed intake:", derr)
			}
		}
		return nil, err
	}

	s.notifier.Dispatch(ctx, userID, NotificationOrderCreated,
		"Order received",
		fmt.Sprintf("Order %s is awaiting verification.", order.OrderNo),
		order.OrderNo,
	)
	s.notifier.NotifyOperator(ctx, order)

	return order, nil
}

func (s *orderServiceImpl) applyPayload(ctx context.Context, order *model.Order, req *dto.CreateOrderRequest) (string, error) {
	switch req.Kind {
	case model.OrderKindProduct:
		if req.Quantity <= 0 || req.Quantity > 10 {
			return "", fmt.Errorf("%w: quantity must be between 1 and 10", ErrValidation)
		}
		product, err := s.productRepo.FindByID(ctx, req.ProductID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrValidation, err)
		}
		order.ProductID = product.ID
		order.Quantity = req.Quantity
		order.TotalAmount = product.Price * int64(req.Quantity)
		return product.Category, nil

	case model.OrderKindVPN:
		if req.Devices <= 0 || req.Devices > 5 {
			return "", fmt.Errorf("%w: devices must be between 1 and 5", ErrValidation)
		}
		if req.Months <= 0 || req.Months > 12 {
			return "", fmt.Errorf("%w: months must be between 1 and 12", ErrValidation)
		}
		if !s.validServer(req.ServerID) {
			return "", fmt.Errorf("%w: unknown server %q", ErrValidation, req.ServerID)
		}
		order.VPNServerID = req.ServerID
		order.VPNDevices = req.Devices
		order.VPNDurationDays = req.Months * 30
		order.VPNProvisionStatus = model.ProvisionStatusPending
		order.Quantity = 1
		order.TotalAmount = s.cfg.VPN.MonthlyPrice * int64(req.Devices) * int64(req.Months)
		return "vpn", nil

	default:
		return "", fmt.Errorf("%w: unknown order kind %q", ErrValidation, req.Kind)
	}
}

func (s *orderServiceImpl) attachEvidence(order *model.Order, screenshot []byte, ext string) error {
	if len(screenshot) == 0 {
		return fmt.Errorf("%w: payment screenshot required", ErrValidation)
	}
	if int64(len(screenshot)) > s.cfg.Quarantine.MaxUploadSize {
		return fmt.Errorf("%w: screenshot exceeds size limit", ErrValidation)
	}
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !allowedEvidenceExts[ext] {
		return fmt.Errorf("%w: unsupported screenshot type %q", ErrValidation, ext)
	}

	sum := sha256.Sum256(screenshot)
	order.ScreenshotHash = hex.EncodeToString(sum[:])

	rel, err := s.store.Save(screenshot, ext)
	if err != nil {
		return fmt.Errorf("quarantine screenshot: %w", err)
	}
	order.ScreenshotPath = rel
	return nil
}

// runOCR is best-effort: an unreachable extractor leaves the order pending
// for fully manual verification instead of failing intake.
func (s *orderServiceImpl) runOCR(ctx context.Context, order *model.Order) {
	info, err := s.ocrClient.ExtractPaymentInfo(ctx, order.ScreenshotPath)
	if err != nil {
		log.Println("ocr extraction:", err)
		return
	}
	order.OCRProcessed = true
	order.OCRTransactionID = info.TransactionID
	order.OCRAmount = info.Amount
	order.OCRConfidence = info.Confidence
}

func (s *orderServiceImpl) scoreFraud(ctx context.Context, order *model.Order) error {
	res, err := s.fraudEngine.Evaluate(ctx, &fraud.Input{
		UserID:         order.UserID,
		TransactionID:  order.OCRTransactionID,
		ScreenshotHash: order.ScreenshotHash,
		Amount:         order.TotalAmount,
		OCRRan:         order.OCRProcessed,
		Confidence:     order.OCRConfidence,
	})
	if err != nil {
		return fmt.Errorf("fraud scoring: %w", err)
	}

	for _, flag := range res.Flags {
		order.AddFraudFlag(flag)
	}
	order.ManualReview = res.RequiresManualReview
	return nil
}

func (s *orderServiceImpl) Get(ctx context.Context, userID, orderNo string) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}

	resp := &dto.OrderResponse{
		OrderNo:      order.OrderNo,
		Kind:         order.Kind,
		Status:       order.Status,
		TotalAmount:  order.TotalAmount,
		ReviewReason: order.ReviewReason,
	}

	if order.Kind == model.OrderKindProduct && order.Status == model.OrderStatusCompleted {
		keys, err := s.keyRepo.DeliveredKeys(ctx, order.OrderNo)
		if err != nil {
			return nil, fmt.Errorf("load delivered keys: %w", err)
		}
		for _, k := range keys {
			resp.DeliveredKeys = append(resp.DeliveredKeys, dto.DeliveredKey{
				Serial: k.Serial,
				Login:  k.Login,
				Extra:  k.Extra,
			})
		}
	}

	if order.Kind == model.OrderKindVPN && order.VPNProvisionStatus == model.ProvisionStatusProvisioned {
		expires := ""
		if order.VPNExpiresAt != nil {
			expires = order.VPNExpiresAt.Format(time.RFC3339)
		}
		resp.VPNCredentials = &dto.VPNCredentials{
			ClientEmail: order.VPNClientEmail,
			SubLink:     order.VPNSubLink,
			ConfigLink:  order.VPNConfigLink,
			Protocol:    order.VPNProtocol,
			ExpiresAt:   expires,
		}
	}

	return resp, nil
}

func (s *orderServiceImpl) List(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

func (s *orderServiceImpl) ListProducts(ctx context.Context) ([]*model.Product, error) {
	return s.productRepo.List(ctx)
}

// Restock adds keys to a product's pool and returns the refreshed unsold
// count.
func (s *orderServiceImpl) Restock(ctx context.Context, productID string, keys []dto.RestockKey) (int64, error) {
	if len(keys) == 0 {
		return 0, fmt.Errorf("%w: no keys supplied", ErrValidation)
	}
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	rows := make([]*model.ProductKey, len(keys))
	for i, k := range keys {
		if k.Serial == "" {
			return 0, fmt.Errorf("%w: key %d has no serial", ErrValidation, i)
		}
		rows[i] = &model.ProductKey{
			ProductID: product.ID,
			Serial:    k.Serial,
			Login:     k.Login,
			Extra:     k.Extra,
		}
	}
	if err := s.keyRepo.AddKeys(ctx, rows); err != nil {
		return 0, fmt.Errorf("add keys: %w", err)
	}

	return s.keyRepo.CountUnsold(ctx, product.ID)
}

// AnonymizeAccount blanks order ownership instead of deleting rows; terminal
// orders stay for audit and accounting.
func (s *orderServiceImpl) AnonymizeAccount(ctx context.Context, userID string) error {
	return s.orderRepo.AnonymizeUser(ctx, userID)
}

func (s *orderServiceImpl) validServer(serverID string) bool {
	for _, id := range s.cfg.VPN.Servers {
		if id == serverID {
			return true
		}
	}
	return false
}

// discountFor computes the discount in minor units. A fixed discount never
// exceeds the order total.
func discountFor(coupon *model.Coupon, amount int64) int64 {
	switch coupon.DiscountType {
	case "percent":
		return decimal.NewFromInt(amount).
			Mul(decimal.NewFromInt(coupon.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			IntPart()
	case "fixed":
		if coupon.DiscountValue > amount {
			return amount
		}
		return coupon.DiscountValue
	default:
		return 0
	}
}

func newOrderNo() string {
	return fmt.Sprintf("KS-%s-%s",
		time.Now().Format("20060102"),
		strings.ToUpper(uuid.NewString()[:8]),
	)
}
