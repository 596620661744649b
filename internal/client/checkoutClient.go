package client

import (
	"context"
	"fmt"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"

	"keyshop/internal/config"
)

// CheckoutClient is a thin pass-through to the external card checkout
// provider for the `card` payment method. No card data ever touches this
// service; we only charge a vaulted token the frontend obtained.
type CheckoutClient interface {
	ChargeOneTime(ctx context.Context, paymentToken string, amount string) (string, error)
}

type checkoutClientImpl struct {
	gateway *braintree.Braintree
}

func NewCheckoutClient(cfg *config.Checkout) CheckoutClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &checkoutClientImpl{
		gateway: gateway,
	}
}

func (c *checkoutClientImpl) ChargeOneTime(ctx context.Context, paymentToken string, amount string) (string, error) {
	decAmount, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount format: %w", err)
	}

	// provider wants NewDecimal(unscaled, scale); "50.00" -> (5000, 2)
	cents := decAmount.Mul(decimal.NewFromInt(100)).IntPart()
	btAmount := braintree.NewDecimal(cents, 2)

	req := &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             btAmount,
		PaymentMethodToken: paymentToken,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transaction creation failed: %w", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined {
		return "", fmt.Errorf("transaction declined by processor: %s", tx.ProcessorResponseText)
	}

	return tx.Id, nil
}
