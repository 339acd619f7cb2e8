package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/kittypup/kittypup/internal/config"
	"github.com/kittypup/kittypup/internal/purchase/domain"
)

// storeVerifier performs local shape validation of a receipt. Deep
// verification against the store APIs is done by the billing edge before
// requests reach this service, so a malformed receipt is the only thing
// rejected here.
type storeVerifier struct {
	cfg config.Config
	log *zap.Logger
}

func NewVerifier(cfg config.Config, log *zap.Logger) domain.Verifier {
	return &storeVerifier{cfg: cfg, log: log.Named("purchase.verifier")}
}

func (v *storeVerifier) Verify(_ context.Context, req domain.VerifyRequest) error {
	if !req.Platform.Valid() {
		return domain.ErrInvalidPlatform
	}
	if req.Receipt == "" || req.TransactionID == "" {
		return domain.ErrVerificationFailed
	}
	if v.cfg.IsProduction() {
		v.log.Warn("store receipt accepted without deep verification",
			zap.String("platform", string(req.Platform)),
			zap.String("transaction_id", req.TransactionID),
		)
	}
	return nil
}
