package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"smartcash/internal/core"
)

// fakeAPI serves canned collections and records mutation calls.
type fakeAPI struct {
	mu          sync.Mutex
	records     map[core.Kind][]core.Transaction
	failList    map[core.Kind]error
	nextID      int64
	deleteCalls int
	beforeList  func() // optional hook, runs at the start of ListTransactions
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		records:  map[core.Kind][]core.Transaction{},
		failList: map[core.Kind]error{},
		nextID:   100,
	}
}

func (f *fakeAPI) seed(ts ...core.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range ts {
		f.records[t.Kind] = append(f.records[t.Kind], t)
	}
}

func (f *fakeAPI) ListTransactions(ctx context.Context, kind core.Kind) ([]core.Transaction, error) {
	f.mu.Lock()
	hook := f.beforeList
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failList[kind]; err != nil {
		return nil, err
	}
	out := make([]core.Transaction, len(f.records[kind]))
	copy(out, f.records[kind])
	return out, nil
}

func (f *fakeAPI) GetTransaction(ctx context.Context, kind core.Kind, id int64) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.records[kind] {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, errors.New("not found")
}

func (f *fakeAPI) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	f.records[t.Kind] = append(f.records[t.Kind], t)
	return t, nil
}

func (f *fakeAPI) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.records[t.Kind] {
		if existing.ID == t.ID {
			f.records[t.Kind][i] = t
			return t, nil
		}
	}
	return core.Transaction{}, errors.New("not found")
}

func (f *fakeAPI) DeleteTransaction(ctx context.Context, kind core.Kind, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	for i, existing := range f.records[kind] {
		if existing.ID == id {
			f.records[kind] = append(f.records[kind][:i], f.records[kind][i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeAPI) deleteCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls
}

func income(id int64, title string, cents int64, date core.Date) core.Transaction {
	return core.Transaction{ID: id, Kind: core.KindIncome, Title: title, Amount: core.Money{Cents: cents}, Date: date}
}

func expense(id int64, title string, cents int64, date core.Date) core.Transaction {
	return core.Transaction{ID: id, Kind: core.KindExpense, Title: title, Amount: core.Money{Cents: cents}, Date: date}
}

func TestLoadMergesAndSortsDescending(t *testing.T) {
	api := newFakeAPI()
	api.seed(
		income(1, "Salary", 500000, core.NewDate(2024, 1, 5)),
		income(2, "Freelance", 150000, core.NewDate(2024, 1, 15)),
		expense(1, "Rent", -120000, core.NewDate(2024, 1, 10)),
	)
	vm := NewViewModel(api, nil, nil)

	led, err := vm.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(led.Entries) != 3 {
		t.Fatalf("entries: got %d", len(led.Entries))
	}

	wantTitles := []string{"Freelance", "Rent", "Salary"}
	for i, want := range wantTitles {
		if led.Entries[i].Title != want {
			t.Fatalf("position %d: got %q, want %q", i, led.Entries[i].Title, want)
		}
	}
}

func TestLoadTieBreakIsStable(t *testing.T) {
	// Same date: fetch-concatenation order (incomes first, server order
	// within a kind) must survive both sorts.
	date := core.NewDate(2024, 3, 1)
	api := newFakeAPI()
	api.seed(
		income(1, "First", 100, date),
		income(2, "Second", 100, date),
		expense(1, "Third", -100, date),
		expense(2, "Fourth", -100, date),
	)
	vm := NewViewModel(api, nil, nil)

	led, err := vm.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []string{"First", "Second", "Third", "Fourth"}
	for i, title := range want {
		if led.Entries[i].Title != title {
			t.Fatalf("display position %d: got %q, want %q", i, led.Entries[i].Title, title)
		}
	}
	for i, p := range led.RunningSeries() {
		if p.Index != i {
			t.Fatalf("series index %d: got %d", i, p.Index)
		}
	}
}

func TestBalanceIndependentOfInsertionOrder(t *testing.T) {
	a := []core.Transaction{
		income(1, "Salary", 500000, core.NewDate(2024, 1, 5)),
		income(2, "Sale", 200000, core.NewDate(2024, 1, 25)),
	}
	b := []core.Transaction{
		expense(1, "Rent", -120000, core.NewDate(2024, 1, 10)),
		expense(2, "Groceries", -45000, core.NewDate(2024, 1, 18)),
	}

	forward := merge(a, b)
	// Same records seeded in a different server order.
	reversed := merge([]core.Transaction{a[1], a[0]}, []core.Transaction{b[1], b[0]})

	const want = 500000 + 200000 - 120000 - 45000
	if forward.Balance().Cents != want {
		t.Fatalf("balance: got %d, want %d", forward.Balance().Cents, want)
	}
	if reversed.Balance().Cents != want {
		t.Fatalf("reversed balance: got %d, want %d", reversed.Balance().Cents, want)
	}
}

func TestRunningSeriesFinalEqualsBalance(t *testing.T) {
	// Income 5000 on Jan 5, expense 1200 on Jan 10.
	led := merge(
		[]core.Transaction{income(1, "Salary", 500000, core.NewDate(2024, 1, 5))},
		[]core.Transaction{expense(1, "Rent", -120000, core.NewDate(2024, 1, 10))},
	)

	if got := led.Balance().Cents; got != 380000 {
		t.Fatalf("balance: got %d, want 380000", got)
	}

	series := led.RunningSeries()
	if len(series) != 2 {
		t.Fatalf("series length: got %d", len(series))
	}
	if series[0].Total.Cents != 500000 {
		t.Fatalf("first point: got %d, want 500000", series[0].Total.Cents)
	}
	if series[1].Total.Cents != 380000 {
		t.Fatalf("final point: got %d, want 380000", series[1].Total.Cents)
	}
	if !series[0].Date.Before(series[1].Date.Time) {
		t.Fatal("series must be date ascending")
	}
	if series[len(series)-1].Total != led.Balance() {
		t.Fatal("final cumulative value must equal the balance")
	}
}

func TestRunningSeriesDoesNotDisturbDisplayOrder(t *testing.T) {
	led := merge(
		[]core.Transaction{income(1, "Salary", 500000, core.NewDate(2024, 1, 5))},
		[]core.Transaction{expense(1, "Rent", -120000, core.NewDate(2024, 1, 10))},
	)
	_ = led.RunningSeries()
	if led.Entries[0].Title != "Rent" {
		t.Fatalf("display order disturbed: first entry %q", led.Entries[0].Title)
	}
}

func TestLoadIdempotent(t *testing.T) {
	api := newFakeAPI()
	api.seed(
		income(1, "Salary", 500000, core.NewDate(2024, 1, 5)),
		expense(1, "Rent", -120000, core.NewDate(2024, 1, 10)),
	)
	vm := NewViewModel(api, nil, nil)

	first, err := vm.Load(context.Background())
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := vm.Load(context.Background())
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if first.Balance() != second.Balance() {
		t.Fatalf("balance changed across loads: %d vs %d", first.Balance().Cents, second.Balance().Cents)
	}
	if len(first.Entries) != len(second.Entries) {
		t.Fatalf("entry count changed: %d vs %d", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		if first.Entries[i] != second.Entries[i] {
			t.Fatalf("entry %d differs: %+v vs %+v", i, first.Entries[i], second.Entries[i])
		}
	}
}

func TestLoadFailureKeepsSettledLedger(t *testing.T) {
	api := newFakeAPI()
	api.seed(
		income(1, "Salary", 500000, core.NewDate(2024, 1, 5)),
		expense(1, "Rent", -120000, core.NewDate(2024, 1, 10)),
	)
	vm := NewViewModel(api, nil, nil)

	if _, err := vm.Load(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	// Expense endpoint starts failing: the next load errors as a whole and
	// the previously displayed ledger stays put.
	api.mu.Lock()
	api.failList[core.KindExpense] = errors.New("expense endpoint down")
	api.records[core.KindIncome] = append(api.records[core.KindIncome],
		income(2, "Bonus", 100000, core.NewDate(2024, 1, 20)))
	api.mu.Unlock()

	if _, err := vm.Load(context.Background()); err == nil {
		t.Fatal("expected load error when one fetch fails")
	}

	settled, ok := vm.Settled()
	if !ok {
		t.Fatal("expected settled ledger to survive the failed load")
	}
	if len(settled.Entries) != 2 {
		t.Fatalf("settled ledger replaced by partial result: %d entries", len(settled.Entries))
	}
	if settled.Balance().Cents != 380000 {
		t.Fatalf("settled balance: got %d, want 380000", settled.Balance().Cents)
	}
}

func TestLoadNeverExposesPartialResult(t *testing.T) {
	api := newFakeAPI()
	api.seed(income(1, "Salary", 500000, core.NewDate(2024, 1, 5)))
	api.failList[core.KindExpense] = errors.New("boom")
	vm := NewViewModel(api, nil, nil)

	if _, err := vm.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := vm.Settled(); ok {
		t.Fatal("no ledger must be exposed after an all-or-nothing failure")
	}
}

func TestStaleLoadDoesNotOverwriteNewer(t *testing.T) {
	api := newFakeAPI()
	api.seed(income(1, "Old", 100000, core.NewDate(2024, 1, 1)))
	vm := NewViewModel(api, nil, nil)

	inFlight := make(chan struct{}, 2)
	release := make(chan struct{})
	api.mu.Lock()
	api.beforeList = func() {
		inFlight <- struct{}{}
		<-release
	}
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := vm.Load(context.Background())
		done <- err
	}()

	// Wait for both fetches of the first load to be in flight.
	<-inFlight
	<-inFlight

	// A newer load with fresh data completes while the first is stalled.
	api.mu.Lock()
	api.beforeList = nil
	api.records[core.KindIncome] = []core.Transaction{income(2, "New", 200000, core.NewDate(2024, 2, 1))}
	api.mu.Unlock()
	if _, err := vm.Load(context.Background()); err != nil {
		t.Fatalf("second load: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first load: %v", err)
	}

	settled, ok := vm.Settled()
	if !ok {
		t.Fatal("expected settled ledger")
	}
	if len(settled.Entries) != 1 || settled.Entries[0].Title != "New" {
		t.Fatalf("stale load overwrote newer result: %+v", settled.Entries)
	}
}

func TestCreateNormalizesSignAtWriteTime(t *testing.T) {
	api := newFakeAPI()
	vm := NewViewModel(api, nil, nil)

	created, err := vm.Create(context.Background(), core.KindExpense, core.TransactionInput{
		Title:  "Rent",
		Amount: core.Money{Cents: 120000},
		Date:   core.NewDate(2024, 2, 1),
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if created.Amount.Cents != -120000 {
		t.Fatalf("expense stored as %d, want -120000", created.Amount.Cents)
	}

	created, err = vm.Create(context.Background(), core.KindIncome, core.TransactionInput{
		Title:  "Salary",
		Amount: core.Money{Cents: 500000},
		Date:   core.NewDate(2024, 2, 5),
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if created.Amount.Cents != 500000 {
		t.Fatalf("income stored as %d, want 500000", created.Amount.Cents)
	}
}

func TestCreateValidationFailsBeforeNetwork(t *testing.T) {
	api := newFakeAPI()
	vm := NewViewModel(api, nil, nil)

	cases := []core.TransactionInput{
		{Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 2, 1)}, // no title
		{Title: "Rent", Date: core.NewDate(2024, 2, 1)},                  // no amount
		{Title: "Rent", Amount: core.Money{Cents: 100}},                  // no date
	}
	for i, in := range cases {
		_, err := vm.Create(context.Background(), core.KindExpense, in)
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}

	api.mu.Lock()
	total := len(api.records[core.KindExpense])
	api.mu.Unlock()
	if total != 0 {
		t.Fatalf("validation failures must not reach the API, %d records created", total)
	}

	if _, err := vm.Create(context.Background(), "savings", core.TransactionInput{
		Title: "x", Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 2, 1),
	}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestUpdateMergesReturnedRecord(t *testing.T) {
	api := newFakeAPI()
	api.seed(expense(1, "Rent", -120000, core.NewDate(2024, 1, 10)))
	vm := NewViewModel(api, nil, nil)

	if _, err := vm.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	updated, err := vm.Update(context.Background(), core.KindExpense, 1, core.TransactionInput{
		Title:  "Rent (adjusted)",
		Amount: core.Money{Cents: 130000},
		Date:   core.NewDate(2024, 1, 12),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != -130000 {
		t.Fatalf("updated amount: got %d, want -130000", updated.Amount.Cents)
	}

	settled, _ := vm.Settled()
	got, ok := settled.Find(core.Key{Kind: core.KindExpense, ID: 1})
	if !ok {
		t.Fatal("record missing from settled ledger")
	}
	if got.Title != "Rent (adjusted)" || got.Date.ISO() != "2024-01-12" {
		t.Fatalf("settled ledger not merged: %+v", got)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	api := newFakeAPI()
	api.seed(expense(1, "Rent", -120000, core.NewDate(2024, 1, 10)))
	vm := NewViewModel(api, nil, nil)
	ctx := context.Background()

	if _, err := vm.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Confirm without a request: no network call happens.
	if err := vm.ConfirmDelete(ctx); !errors.Is(err, ErrNoPendingDelete) {
		t.Fatalf("expected ErrNoPendingDelete, got %v", err)
	}
	if api.deleteCallCount() != 0 {
		t.Fatal("delete reached the network without confirmation")
	}

	// Request then cancel: still no network call.
	key := core.Key{Kind: core.KindExpense, ID: 1}
	vm.RequestDelete(key)
	if vm.PendingDelete() == nil {
		t.Fatal("expected pending delete target")
	}
	vm.CancelDelete()
	if vm.PendingDelete() != nil {
		t.Fatal("cancel must clear the pending target")
	}
	if err := vm.ConfirmDelete(ctx); !errors.Is(err, ErrNoPendingDelete) {
		t.Fatalf("expected ErrNoPendingDelete after cancel, got %v", err)
	}
	if api.deleteCallCount() != 0 {
		t.Fatal("delete reached the network after cancel")
	}

	// Request then confirm: record removed from server and settled ledger.
	vm.RequestDelete(key)
	if err := vm.ConfirmDelete(ctx); err != nil {
		t.Fatalf("confirm delete: %v", err)
	}
	if api.deleteCallCount() != 1 {
		t.Fatalf("delete calls: got %d, want 1", api.deleteCallCount())
	}
	settled, _ := vm.Settled()
	if _, ok := settled.Find(key); ok {
		t.Fatal("record still present in settled ledger")
	}
	if vm.PendingDelete() != nil {
		t.Fatal("pending target must be cleared after confirmation")
	}
}
