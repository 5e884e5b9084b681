package ledger

import (
	"context"
	"errors"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/pkg/logger"
)

type FolioRepository interface {
	GetByUserFund(ctx context.Context, userID, fundID int64) (*model.Folio, error)
	Create(ctx context.Context, folio *model.Folio) (*model.Folio, error)
}

// FolioRegistry resolves the per-(user, fund) folio a ledger row is tagged
// with, creating it lazily the first time a fulfillment reports the ref.
type FolioRegistry struct {
	repo FolioRepository
}

func NewFolioRegistry(repo FolioRepository) *FolioRegistry {
	return &FolioRegistry{repo: repo}
}

// Resolve returns the folio for (userID, fundID). When none exists and the
// provider reported a folio ref, one is created; losing a concurrent
// create race is resolved by re-reading the winner's row. An empty
// folioRef with no existing folio resolves to nil.
func (r *FolioRegistry) Resolve(ctx context.Context, userID, fundID int64, folioRef string) (*model.Folio, error) {
	folio, err := r.repo.GetByUserFund(ctx, userID, fundID)
	if err == nil {
		return folio, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if folioRef == "" {
		logger.Warn("no folio ref reported and no folio on record", "user_id", userID, "fund_id", fundID)
		return nil, nil
	}

	created, err := r.repo.Create(ctx, &model.Folio{
		UserID:   userID,
		FundID:   fundID,
		FolioRef: folioRef,
	})
	if err == nil {
		logger.Info("folio created", "user_id", userID, "fund_id", fundID, "folio_ref", folioRef)
		return created, nil
	}

	// Unique violation from a concurrent creator: the row exists now.
	existing, readErr := r.repo.GetByUserFund(ctx, userID, fundID)
	if readErr == nil {
		return existing, nil
	}
	return nil, err
}
