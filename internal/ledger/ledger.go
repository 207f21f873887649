// Package ledger produces the merged, derived view over the income and
// expense collections: the date-sorted history table, the account balance
// and the running-balance series behind the trend chart.
package ledger

import (
	"sort"

	"smartcash/internal/core"
)

type (
	// Ledger is the merged view of both collections. Entries are held in
	// date-descending display order; ties keep the original
	// fetch-concatenation order (incomes before expenses, each in server
	// order), which is why every sort in this package is stable.
	Ledger struct {
		Entries []core.Transaction
	}

	// Totals are the dashboard headline numbers. Expense is a magnitude.
	Totals struct {
		Income  core.Money
		Expense core.Money
		Balance core.Money
	}

	// BalancePoint is one step of the chronological running-balance fold.
	BalancePoint struct {
		Index int
		Date  core.Date
		Total core.Money
	}
)

// merge tags nothing and trusts stored signs: normalization happened at
// write time. Incomes come first so tie-breaks are reproducible.
func merge(incomes, expenses []core.Transaction) Ledger {
	entries := make([]core.Transaction, 0, len(incomes)+len(expenses))
	entries = append(entries, incomes...)
	entries = append(entries, expenses...)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date.Time)
	})
	return Ledger{Entries: entries}
}

// Balance recomputes the account balance from the full ledger:
// total income minus total expense magnitude. It is never accumulated
// incrementally, so a missed update can't make it drift.
func (l Ledger) Balance() core.Money {
	return l.Totals().Balance
}

// Totals folds the full ledger into the three headline numbers.
func (l Ledger) Totals() Totals {
	var t Totals
	for _, e := range l.Entries {
		switch e.Kind {
		case core.KindIncome:
			t.Income = t.Income.Add(e.Amount)
		case core.KindExpense:
			t.Expense = t.Expense.Add(e.Amount.Abs())
		}
	}
	t.Balance = t.Income.Add(t.Expense.Neg())
	return t
}

// RunningSeries returns one point per record in date-ascending order, each
// carrying the cumulative balance up to that record. The fold runs over a
// working copy, so the descending display order is untouched; the final
// point always equals Balance().
func (l Ledger) RunningSeries() []BalancePoint {
	work := make([]core.Transaction, len(l.Entries))
	copy(work, l.Entries)
	sort.SliceStable(work, func(i, j int) bool {
		return work[i].Date.Before(work[j].Date.Time)
	})

	points := make([]BalancePoint, 0, len(work))
	var running core.Money
	for i, e := range work {
		running = running.Add(e.Amount)
		points = append(points, BalancePoint{Index: i, Date: e.Date, Total: running})
	}
	return points
}

// Find returns the entry with the given key, if present.
func (l Ledger) Find(key core.Key) (core.Transaction, bool) {
	for _, e := range l.Entries {
		if e.Key() == key {
			return e, true
		}
	}
	return core.Transaction{}, false
}

// clone returns an independent copy so callers can't mutate the settled
// view through a returned slice.
func (l Ledger) clone() Ledger {
	entries := make([]core.Transaction, len(l.Entries))
	copy(entries, l.Entries)
	return Ledger{Entries: entries}
}

// upsert replaces the entry with t's key, or inserts t, and restores the
// descending display order.
func (l Ledger) upsert(t core.Transaction) Ledger {
	out := l.clone()
	replaced := false
	for i, e := range out.Entries {
		if e.Key() == t.Key() {
			out.Entries[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		out.Entries = append(out.Entries, t)
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].Date.After(out.Entries[j].Date.Time)
	})
	return out
}

// remove drops the entry with the given key, if present.
func (l Ledger) remove(key core.Key) Ledger {
	out := Ledger{Entries: make([]core.Transaction, 0, len(l.Entries))}
	for _, e := range l.Entries {
		if e.Key() != key {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}
