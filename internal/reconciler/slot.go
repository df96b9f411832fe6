package reconciler

import (
	"context"

	"github.com/davebream/rpswatch/internal/model"
	"github.com/davebream/rpswatch/internal/store"
)

// SlotGuard owns the read-check-write on accounts/{id}/currentUser. A store
// with conditional writes can implement it without the lost-update window of
// BestEffortSlot.
type SlotGuard interface {
	// Current returns the slot holder, or nil when the slot is empty.
	Current(ctx context.Context, accountID string) (*model.CurrentUser, error)
	Claim(ctx context.Context, accountID string, cu model.CurrentUser) error
	AttachSession(ctx context.Context, accountID, sessionID string) error
	// ReleaseIfOwner empties the slot only when clientID holds it.
	ReleaseIfOwner(ctx context.Context, accountID, clientID string) (bool, error)
}

// BestEffortSlot implements SlotGuard with plain last-write-wins writes.
// Two devices claiming at once can both succeed; the sweep on the next
// claim converges the sessions.
type BestEffortSlot struct {
	store store.Store
}

func NewBestEffortSlot(s store.Store) *BestEffortSlot {
	return &BestEffortSlot{store: s}
}

func (b *BestEffortSlot) Current(ctx context.Context, accountID string) (*model.CurrentUser, error) {
	var cu model.CurrentUser
	found, err := b.store.Get(ctx, store.CurrentUserPath(accountID), nil, &cu)
	if err != nil || !found {
		return nil, err
	}
	return &cu, nil
}

func (b *BestEffortSlot) Claim(ctx context.Context, accountID string, cu model.CurrentUser) error {
	return b.store.Put(ctx, store.CurrentUserPath(accountID), cu)
}

func (b *BestEffortSlot) AttachSession(ctx context.Context, accountID, sessionID string) error {
	return b.store.Patch(ctx, store.CurrentUserPath(accountID), map[string]any{"sessionId": sessionID})
}

func (b *BestEffortSlot) ReleaseIfOwner(ctx context.Context, accountID, clientID string) (bool, error) {
	cur, err := b.Current(ctx, accountID)
	if err != nil || cur == nil || cur.ClientID != clientID {
		return false, err
	}
	if err := b.store.Put(ctx, store.CurrentUserPath(accountID), nil); err != nil {
		return false, err
	}
	return true, nil
}
