package services

import (
	"context"

	"github.com/arcane-labs/credits-backend/config"
	"github.com/arcane-labs/credits-backend/utils"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

// GooglePlayVerifier talks to the Google Play Developer API to verify and
// consume in-app product purchases.
type GooglePlayVerifier struct {
	service     *androidpublisher.Service
	packageName string
}

// NewGooglePlayVerifier builds a verifier from configuration. When the
// integration is disabled or the service account cannot be loaded it
// returns a non-nil verifier that reports Available() == false, so the
// rest of the system degrades to rejecting purchase verification instead
// of crashing at startup.
func NewGooglePlayVerifier(ctx context.Context, cfg *config.Config) *GooglePlayVerifier {
	verifier := &GooglePlayVerifier{packageName: cfg.GooglePackageName}

	if !cfg.GooglePlayEnabled {
		utils.LogInfo("Google Play API is disabled")
		return verifier
	}
	if cfg.GooglePlayServiceAccountJSON == "" {
		utils.LogError("Google Play service account JSON path not configured")
		return verifier
	}

	service, err := androidpublisher.NewService(ctx,
		option.WithCredentialsFile(cfg.GooglePlayServiceAccountJSON),
		option.WithScopes(androidpublisher.AndroidpublisherScope),
	)
	if err != nil {
		utils.LogError("Failed to initialize Google Play service: %v", err)
		return verifier
	}

	verifier.service = service
	utils.LogInfo("Google Play Developer API service initialized")
	return verifier
}

// Available reports whether the API client is configured.
func (g *GooglePlayVerifier) Available() bool {
	return g.service != nil
}

// VerifyProduct fetches the provider's record for a product purchase.
func (g *GooglePlayVerifier) VerifyProduct(ctx context.Context, productID, receiptToken string) (*ReceiptVerification, error) {
	purchase, err := g.service.Purchases.Products.
		Get(g.packageName, productID, receiptToken).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	return &ReceiptVerification{
		OrderID:          purchase.OrderId,
		PurchaseState:    purchase.PurchaseState,
		ConsumptionState: purchase.ConsumptionState,
	}, nil
}

// ConsumeProduct marks the purchase consumed on Google Play.
func (g *GooglePlayVerifier) ConsumeProduct(ctx context.Context, productID, receiptToken string) error {
	return g.service.Purchases.Products.
		Consume(g.packageName, productID, receiptToken).
		Context(ctx).
		Do()
}
