package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smartcash/internal/core"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, nil)
}

func TestLogin(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decode credentials: %v", err)
		}
		if creds.Email != "ana@example.com" {
			t.Errorf("email: got %q", creds.Email)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 42, "name": "Ana", "email": creds.Email})
	}))

	user, err := c.Login(context.Background(), "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if user.ID != 42 || user.Name != "Ana" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestLoginRejected(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
	}))

	_, err := c.Login(context.Background(), "ana@example.com", "wrong")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T (%v)", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: got %d", authErr.StatusCode)
	}
	if authErr.Message != "invalid credentials" {
		t.Fatalf("message: got %q", authErr.Message)
	}
}

func TestRegisterPlainTextError(t *testing.T) {
	// Non-JSON error bodies fall back to the raw text.
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("email already registered\n"))
	}))

	_, err := c.Register(context.Background(), "Ana", "ana@example.com", "secret")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T (%v)", err, err)
	}
	if authErr.Message != "email already registered" {
		t.Fatalf("message: got %q", authErr.Message)
	}
}

func TestListTransactions(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/expense" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "title": "Rent", "amount": -1200.00, "date": "2024-01-10"},
			{"id": 2, "title": "Groceries", "amount": -450.50, "date": "2024-01-18", "category": "Food"},
		})
	}))

	records, err := c.ListTransactions(context.Background(), core.KindExpense)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records: got %d", len(records))
	}
	if records[0].Kind != core.KindExpense {
		t.Fatalf("kind tag missing: %+v", records[0])
	}
	if records[0].Amount.Cents != -120000 {
		t.Fatalf("amount cents: got %d", records[0].Amount.Cents)
	}
	if records[1].Amount.Cents != -45050 {
		t.Fatalf("amount cents: got %d", records[1].Amount.Cents)
	}
	if records[1].Date.ISO() != "2024-01-18" {
		t.Fatalf("date: got %s", records[1].Date.ISO())
	}
}

func TestCreateTransaction(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/income" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var dto transactionDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if dto.Amount != 5000.00 {
			t.Errorf("amount: got %v", dto.Amount)
		}
		dto.ID = 9
		json.NewEncoder(w).Encode(dto)
	}))

	created, err := c.CreateTransaction(context.Background(), core.Transaction{
		Kind:   core.KindIncome,
		Title:  "Salary",
		Amount: core.Money{Cents: 500000},
		Date:   core.NewDate(2024, 1, 5),
	})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if created.ID != 9 {
		t.Fatalf("server id not applied: %+v", created)
	}
	if created.Amount.Cents != 500000 {
		t.Fatalf("amount round trip: got %d", created.Amount.Cents)
	}
}

func TestDeleteTransaction(t *testing.T) {
	var gotPath, gotMethod string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.DeleteTransaction(context.Background(), core.KindExpense, 5); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/expense/5" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestCRUDErrorIsNetworkError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))

	_, err := c.ListTransactions(context.Background(), core.KindIncome)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T (%v)", err, err)
	}
	if netErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status: got %d", netErr.StatusCode)
	}
}

func TestTransportFailure(t *testing.T) {
	// Point at a closed server to force a dial error.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, nil)
	_, err := c.ListTransactions(context.Background(), core.KindIncome)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T (%v)", err, err)
	}
	if netErr.Err == nil {
		t.Fatal("expected wrapped transport error")
	}
}
