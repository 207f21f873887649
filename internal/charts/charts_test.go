package charts

import (
	"bytes"
	"testing"

	"smartcash/internal/core"
	"smartcash/internal/ledger"
)

func TestRunningBalancePNG(t *testing.T) {
	r := NewRenderer()

	points := []ledger.BalancePoint{
		{Index: 0, Date: core.NewDate(2024, 1, 5), Total: core.Money{Cents: 500000}},
		{Index: 1, Date: core.NewDate(2024, 1, 10), Total: core.Money{Cents: 380000}},
		{Index: 2, Date: core.NewDate(2024, 1, 20), Total: core.Money{Cents: 430000}},
	}

	img, err := r.RunningBalancePNG(points)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(img) == 0 {
		t.Fatal("expected PNG bytes")
	}

	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatalf("output is not a PNG, starts with %x", img[:4])
	}
}

func TestRunningBalancePNGTooFewPoints(t *testing.T) {
	r := NewRenderer()

	for _, points := range [][]ledger.BalancePoint{
		nil,
		{{Index: 0, Date: core.NewDate(2024, 1, 5), Total: core.Money{Cents: 100}}},
	} {
		img, err := r.RunningBalancePNG(points)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if img != nil {
			t.Fatalf("expected nil image for %d points", len(points))
		}
	}
}
