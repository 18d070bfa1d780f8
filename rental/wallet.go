/*
wallet.go - Per-user balance operations

PURPOSE:
  The wallet ledger debits renters and credits owners. Balances are scalar,
  never negative, and only mutated here or by the settlement orchestrator
  (which uses the same primitives inside its commit transaction).

CONSERVATION:
  Transfer composes debit(from) then credit(to) for the same amount inside
  one store transaction: the sum of balance changes nets to zero. If
  infrastructure fails mid-transfer, the transaction rolls back and no
  partial effect is observable.

ROUNDING:
  Amounts are decimal; rental costs are rounded half-even to 2 decimal
  places before they ever reach a wallet (see booking.go).

SEE ALSO:
  - settlement.go: Uses debit/credit entries inside its transaction
  - store.go: ApplyWalletEntry contract (atomic balance check + adjust)
*/
package rental

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WalletLedger exposes balance reads and mutations.
type WalletLedger struct {
	store TxStore
}

func NewWalletLedger(store TxStore) *WalletLedger {
	return &WalletLedger{store: store}
}

// Balance returns the user's current balance.
func (w *WalletLedger) Balance(ctx context.Context, userID UserID) (Money, error) {
	u, err := w.store.GetUser(ctx, userID)
	if err != nil {
		return Money{}, err
	}
	if u == nil {
		return Money{}, ErrUserNotFound
	}
	return u.Balance, nil
}

// TopUp adds funds to a wallet. The only way balance increases outside a
// settlement credit.
func (w *WalletLedger) TopUp(ctx context.Context, userID UserID, amount Money) error {
	return w.credit(ctx, w.store, userID, amount, EntryTopUp, "")
}

// Credit adds a positive amount to the user's balance.
func (w *WalletLedger) Credit(ctx context.Context, userID UserID, amount Money) error {
	return w.credit(ctx, w.store, userID, amount, EntryCredit, "")
}

// Debit removes a positive amount; fails with InsufficientFundsError if the
// balance cannot cover it.
func (w *WalletLedger) Debit(ctx context.Context, userID UserID, amount Money) error {
	return w.debit(ctx, w.store, userID, amount, "")
}

// Transfer moves amount from one wallet to another atomically.
func (w *WalletLedger) Transfer(ctx context.Context, from, to UserID, amount Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return w.store.WithTx(ctx, func(s Store) error {
		if err := w.debit(ctx, s, from, amount, ""); err != nil {
			return err
		}
		return w.credit(ctx, s, to, amount, EntryCredit, "")
	})
}

// Entries returns the user's wallet history, newest first.
func (w *WalletLedger) Entries(ctx context.Context, userID UserID) ([]WalletEntry, error) {
	return w.store.ListWalletEntries(ctx, userID)
}

// credit and debit are shared with the settlement orchestrator, which passes
// its transaction-scoped Store.

func (w *WalletLedger) credit(ctx context.Context, s Store, userID UserID, amount Money, kind WalletEntryKind, ref string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return s.ApplyWalletEntry(ctx, WalletEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Delta:       amount,
		Kind:        kind,
		ReferenceID: ref,
		CreatedAt:   time.Now().UTC(),
	})
}

func (w *WalletLedger) debit(ctx context.Context, s Store, userID UserID, amount Money, ref string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	// Surface the shortfall so the user knows how much to top up.
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	if u.Balance.LessThan(amount) {
		return &InsufficientFundsError{
			UserID:    userID,
			Available: u.Balance,
			Requested: amount,
			Shortfall: amount.Sub(u.Balance),
		}
	}
	return s.ApplyWalletEntry(ctx, WalletEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Delta:       amount.Neg(),
		Kind:        EntryDebit,
		ReferenceID: ref,
		CreatedAt:   time.Now().UTC(),
	})
}
