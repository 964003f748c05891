package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/repository"
)

// Housekeeper periodically deletes lapsed reset tokens and expired ledger
// rows. Pure housekeeping: validation always compares against the live
// clock, so correctness never depends on this running.
type Housekeeper struct {
	tokens   repository.TokenRepository
	resets   repository.PasswordResetRepository
	logger   *zap.Logger
	interval time.Duration
}

// NewHousekeeper builds the worker.
func NewHousekeeper(tokens repository.TokenRepository, resets repository.PasswordResetRepository, logger *zap.Logger, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Housekeeper{tokens: tokens, resets: resets, logger: logger, interval: interval}
}

// Run blocks until ctx is done, sweeping on the configured cadence.
func (h *Housekeeper) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

func (h *Housekeeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	deletedTokens, err := h.tokens.DeleteExpired(ctx, now)
	if err != nil {
		h.logger.Warn("housekeeping: token ledger sweep failed", zap.Error(err))
	}
	deletedResets, err := h.resets.DeleteLapsed(ctx, now)
	if err != nil {
		h.logger.Warn("housekeeping: reset token sweep failed", zap.Error(err))
	}

	if deletedTokens > 0 || deletedResets > 0 {
		h.logger.Info("housekeeping sweep",
			zap.Int64("deleted_tokens", deletedTokens),
			zap.Int64("deleted_reset_tokens", deletedResets))
	}
}
