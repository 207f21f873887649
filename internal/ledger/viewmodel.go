package ledger

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"smartcash/internal/core"
	"smartcash/internal/events"
	"smartcash/internal/log"
)

// ErrNoPendingDelete is returned when a delete is confirmed without a
// preceding request: the destructive call must never reach the network
// without the explicit confirmation step.
var ErrNoPendingDelete = errors.New("no delete pending confirmation")

// API is the slice of the remote client the view-model consumes.
type API interface {
	ListTransactions(ctx context.Context, kind core.Kind) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, kind core.Kind, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, kind core.Kind, id int64) error
}

// Publisher emits committed-mutation events for the export worker.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, ev *events.TransactionEvent) error
}

// ViewModel keeps the last settled ledger and synchronizes it with
// server-side mutations. All mutation goes through the remote API and is
// only applied locally after the network response confirms it.
type ViewModel struct {
	api       API
	publisher Publisher // nil disables event publishing
	logger    *log.Logger

	mu            sync.Mutex
	settled       *Ledger
	loadGen       uint64
	pendingDelete *core.Key
}

func NewViewModel(api API, publisher Publisher, logger *log.Logger) *ViewModel {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ViewModel{
		api:       api,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// Load fetches both collections concurrently and joins them into one
// settled ledger. The join is all-or-nothing: if either fetch fails the
// whole load fails and the previously settled ledger stays untouched, since
// a half-populated balance would be misleading. A load that finishes
// after a newer one started never overwrites the newer result.
func (vm *ViewModel) Load(ctx context.Context) (Ledger, error) {
	vm.mu.Lock()
	vm.loadGen++
	gen := vm.loadGen
	vm.mu.Unlock()

	var incomes, expenses []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomes, err = vm.api.ListTransactions(gctx, core.KindIncome)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = vm.api.ListTransactions(gctx, core.KindExpense)
		return err
	})
	if err := g.Wait(); err != nil {
		vm.logger.ErrorContext(ctx, "Ledger load failed",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err.Error())
		return Ledger{}, err
	}

	led := merge(incomes, expenses)

	vm.mu.Lock()
	if gen == vm.loadGen {
		settled := led.clone()
		vm.settled = &settled
	}
	vm.mu.Unlock()

	vm.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldRecords, len(led.Entries),
		log.FieldAmountCents, led.Balance().Cents)
	return led, nil
}

// Settled returns a copy of the last successfully loaded ledger. The second
// return is false before the first successful load.
func (vm *ViewModel) Settled() (Ledger, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.settled == nil {
		return Ledger{}, false
	}
	return vm.settled.clone(), true
}

// Create validates the input locally, normalizes the sign for the kind
// (expense -> -abs, income -> +abs; the single point of normalization) and
// posts the record. The settled ledger only changes after the server
// confirms.
func (vm *ViewModel) Create(ctx context.Context, kind core.Kind, in core.TransactionInput) (core.Transaction, error) {
	if !kind.Valid() {
		return core.Transaction{}, &core.ValidationError{Field: "kind", Reason: "must be income or expense"}
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := vm.api.CreateTransaction(ctx, core.Transaction{
		Kind:        kind,
		Title:       in.Title,
		Description: in.Description,
		Amount:      kind.Signed(in.Amount),
		Date:        in.Date,
		Category:    in.Category,
	})
	if err != nil {
		return core.Transaction{}, err
	}

	vm.applyUpsert(created)
	vm.publish(ctx, events.ActionCreated, created)
	return created, nil
}

// Update replaces the record by id within its kind, in full; the remote API
// does not support partial patches. The returned record is merged into the
// settled ledger so the view stays consistent without a reload.
func (vm *ViewModel) Update(ctx context.Context, kind core.Kind, id int64, in core.TransactionInput) (core.Transaction, error) {
	if !kind.Valid() {
		return core.Transaction{}, &core.ValidationError{Field: "kind", Reason: "must be income or expense"}
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	updated, err := vm.api.UpdateTransaction(ctx, core.Transaction{
		ID:          id,
		Kind:        kind,
		Title:       in.Title,
		Description: in.Description,
		Amount:      kind.Signed(in.Amount),
		Date:        in.Date,
		Category:    in.Category,
	})
	if err != nil {
		return core.Transaction{}, err
	}

	vm.applyUpsert(updated)
	vm.publish(ctx, events.ActionUpdated, updated)
	return updated, nil
}

// Get fetches a single record for the edit form.
func (vm *ViewModel) Get(ctx context.Context, kind core.Kind, id int64) (core.Transaction, error) {
	return vm.api.GetTransaction(ctx, kind, id)
}

// RequestDelete marks a record as pending deletion. This is a pure state
// toggle: nothing touches the network until ConfirmDelete.
func (vm *ViewModel) RequestDelete(key core.Key) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.pendingDelete = &key
}

// PendingDelete returns the record currently awaiting confirmation, if any.
func (vm *ViewModel) PendingDelete() *core.Key {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.pendingDelete == nil {
		return nil
	}
	key := *vm.pendingDelete
	return &key
}

// CancelDelete clears the pending target without any network effect.
func (vm *ViewModel) CancelDelete() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.pendingDelete = nil
}

// ConfirmDelete performs the gated destructive call. Without a pending
// target it returns ErrNoPendingDelete and issues no network call. The
// target is cleared whatever the outcome; a failed delete must be
// re-requested.
func (vm *ViewModel) ConfirmDelete(ctx context.Context) error {
	vm.mu.Lock()
	key := vm.pendingDelete
	vm.pendingDelete = nil
	vm.mu.Unlock()

	if key == nil {
		return ErrNoPendingDelete
	}

	if err := vm.api.DeleteTransaction(ctx, key.Kind, key.ID); err != nil {
		return err
	}

	vm.applyRemove(*key)
	vm.publish(ctx, events.ActionDeleted, core.Transaction{ID: key.ID, Kind: key.Kind})
	return nil
}

func (vm *ViewModel) applyUpsert(t core.Transaction) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.settled == nil {
		return
	}
	updated := vm.settled.upsert(t)
	vm.settled = &updated
}

func (vm *ViewModel) applyRemove(key core.Key) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.settled == nil {
		return
	}
	updated := vm.settled.remove(key)
	vm.settled = &updated
}

// publish is best-effort: the mutation is already committed server-side, so
// a broker failure only gets logged.
func (vm *ViewModel) publish(ctx context.Context, action string, t core.Transaction) {
	if vm.publisher == nil {
		return
	}
	ev := events.NewTransactionEvent(action, string(t.Kind), t.ID)
	if action != events.ActionDeleted {
		ev.Title = t.Title
		ev.AmountCents = t.Amount.Cents
		ev.Date = t.Date.ISO()
	}
	if err := vm.publisher.PublishTransactionEvent(ctx, ev); err != nil {
		vm.logger.WarnContext(ctx, "Failed to publish transaction event",
			log.FieldOperation, log.OpPublish,
			log.FieldKind, string(t.Kind),
			log.FieldTxID, t.ID,
			log.FieldError, err.Error())
	}
}
