package processor

import (
	"context"
	"fmt"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
)

// Classify decides what fresh means against the persisted record, which is
// nil for a postId never seen before. On update the new record inherits the
// persisted ledger unchanged.
func Classify(fresh models.DealRecord, persisted *models.DealRecord) models.Action {
	switch {
	case persisted == nil:
		fresh.Notifications = nil
		return models.Action{Kind: models.ActionCreate, New: fresh}
	case !fresh.ContentEqual(*persisted):
		fresh.Notifications = persisted.Notifications
		fresh.FirstSeen = persisted.FirstSeen
		return models.Action{Kind: models.ActionUpdate, Old: persisted, New: fresh}
	default:
		return models.Action{Kind: models.ActionNoOp, Old: persisted, New: *persisted}
	}
}

// Reconciler classifies freshly extracted records against the store.
type Reconciler struct {
	store DealStore
}

func NewReconciler(store DealStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile reads the persisted record for fresh.PostID and classifies fresh.
// Records are reconciled one at a time, in page order, each after the previous
// action has been executed and persisted.
func (r *Reconciler) Reconcile(ctx context.Context, source string, fresh models.DealRecord) (models.Action, error) {
	persisted, err := r.store.GetDeal(ctx, source, fresh.PostID)
	if err != nil {
		return models.Action{}, fmt.Errorf("failed to load deal %s: %w", fresh.PostID, err)
	}
	return Classify(fresh, persisted), nil
}
