// Package api implements the JSON-over-HTTP client for the remote SmartCash
// API. It owns the wire format; callers only see core types and the error
// taxonomy in errors.go.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"smartcash/internal/core"
	"smartcash/internal/log"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.WithComponent(log.ComponentAPI),
	}
}

// transactionDTO is the wire representation of a transaction. The remote API
// speaks decimal amounts and ISO dates; conversion to cents happens here and
// nowhere else.
type transactionDTO struct {
	ID          int64   `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Category    string  `json:"category,omitempty"`
}

type credentialsDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registrationDTO struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

func toDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Amount:      t.Amount.Float64(),
		Date:        t.Date.ISO(),
		Category:    t.Category,
	}
}

func fromDTO(dto transactionDTO, kind core.Kind) (core.Transaction, error) {
	date, err := core.ParseDate(dto.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", dto.Date, err)
	}
	return core.Transaction{
		ID:          dto.ID,
		Kind:        kind,
		Title:       dto.Title,
		Description: dto.Description,
		Amount:      core.MoneyFromFloat(dto.Amount),
		Date:        date,
		Category:    dto.Category,
	}, nil
}

func kindPath(kind core.Kind) string {
	if kind == core.KindExpense {
		return "/api/expense"
	}
	return "/api/income"
}

// Login verifies credentials against the remote API and returns the identity
// used to construct a session. A non-2xx status yields an AuthError.
func (c *Client) Login(ctx context.Context, email, password string) (core.User, error) {
	var user core.User
	body, err := c.do(ctx, http.MethodPost, "/api/auth/login", credentialsDTO{Email: email, Password: password}, true)
	if err != nil {
		return core.User{}, err
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return core.User{}, &NetworkError{Op: "login", Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.InfoContext(ctx, "Login accepted by API",
		log.FieldOperation, log.OpLogin,
		log.FieldUserID, user.ID,
		log.FieldEmail, user.Email)
	return user, nil
}

// Register creates a new account. The server's error message, structured or
// plain text, is surfaced to the caller via AuthError.
func (c *Client) Register(ctx context.Context, name, email, password string) (core.User, error) {
	var user core.User
	payload := registrationDTO{Name: name, Email: email, PasswordHash: password}
	body, err := c.do(ctx, http.MethodPost, "/api/usuarios", payload, true)
	if err != nil {
		return core.User{}, err
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return core.User{}, &NetworkError{Op: "register", Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.InfoContext(ctx, "User registered",
		log.FieldOperation, log.OpRegister,
		log.FieldUserID, user.ID,
		log.FieldEmail, user.Email)
	return user, nil
}

// UpdateUser replaces the profile of an existing user.
func (c *Client) UpdateUser(ctx context.Context, user core.User, password string) (core.User, error) {
	payload := registrationDTO{Name: user.Name, Email: user.Email, PasswordHash: password}
	body, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/usuarios/%d", user.ID), payload, true)
	if err != nil {
		return core.User{}, err
	}
	var updated core.User
	if err := json.Unmarshal(body, &updated); err != nil {
		return core.User{}, &NetworkError{Op: "update user", Err: fmt.Errorf("decode response: %w", err)}
	}
	return updated, nil
}

// ListTransactions fetches the full collection of one kind and tags every
// record with it.
func (c *Client) ListTransactions(ctx context.Context, kind core.Kind) ([]core.Transaction, error) {
	body, err := c.do(ctx, http.MethodGet, kindPath(kind), nil, false)
	if err != nil {
		return nil, err
	}

	var dtos []transactionDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, &NetworkError{Op: "list " + string(kind), Err: fmt.Errorf("decode response: %w", err)}
	}

	records := make([]core.Transaction, 0, len(dtos))
	for _, dto := range dtos {
		t, err := fromDTO(dto, kind)
		if err != nil {
			return nil, &NetworkError{Op: "list " + string(kind), Err: err}
		}
		records = append(records, t)
	}

	c.logger.DebugContext(ctx, "Fetched transactions",
		log.FieldOperation, log.OpLoad,
		log.FieldKind, string(kind),
		log.FieldRecords, len(records))
	return records, nil
}

// GetTransaction fetches a single record by id within its kind.
func (c *Client) GetTransaction(ctx context.Context, kind core.Kind, id int64) (core.Transaction, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", kindPath(kind), id), nil, false)
	if err != nil {
		return core.Transaction{}, err
	}
	var dto transactionDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return core.Transaction{}, &NetworkError{Op: "get " + string(kind), Err: fmt.Errorf("decode response: %w", err)}
	}
	return fromDTO(dto, kind)
}

// CreateTransaction posts a new record and returns the server-confirmed copy
// with its assigned id. The caller's record is only committed once this
// returns nil.
func (c *Client) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	body, err := c.do(ctx, http.MethodPost, kindPath(t.Kind), toDTO(t), false)
	if err != nil {
		return core.Transaction{}, err
	}
	var dto transactionDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return core.Transaction{}, &NetworkError{Op: "create " + string(t.Kind), Err: fmt.Errorf("decode response: %w", err)}
	}

	created, err := fromDTO(dto, t.Kind)
	if err != nil {
		return core.Transaction{}, err
	}
	c.logger.InfoContext(ctx, "Transaction created",
		log.FieldOperation, log.OpCreate,
		log.FieldKind, string(t.Kind),
		log.FieldTxID, created.ID,
		log.FieldAmountCents, created.Amount.Cents)
	return created, nil
}

// UpdateTransaction replaces the record with the given id in full. Partial
// patches are not supported by the remote API.
func (c *Client) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	body, err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", kindPath(t.Kind), t.ID), toDTO(t), false)
	if err != nil {
		return core.Transaction{}, err
	}
	var dto transactionDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return core.Transaction{}, &NetworkError{Op: "update " + string(t.Kind), Err: fmt.Errorf("decode response: %w", err)}
	}

	updated, err := fromDTO(dto, t.Kind)
	if err != nil {
		return core.Transaction{}, err
	}
	c.logger.InfoContext(ctx, "Transaction updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldKind, string(t.Kind),
		log.FieldTxID, updated.ID)
	return updated, nil
}

// DeleteTransaction removes the record with the given id within its kind.
func (c *Client) DeleteTransaction(ctx context.Context, kind core.Kind, id int64) error {
	if _, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", kindPath(kind), id), nil, false); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldKind, string(kind),
		log.FieldTxID, id)
	return nil
}

// do performs a single round-trip. Non-2xx statuses become AuthError for the
// auth surface and NetworkError for everything else; the body's message is
// decoded either way.
func (c *Client) do(ctx context.Context, method, path string, payload any, authSurface bool) ([]byte, error) {
	op := method + " " + path

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &NetworkError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decodeErrorMessage(body)
		if authSurface {
			return nil, &AuthError{StatusCode: resp.StatusCode, Message: msg}
		}
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	return body, nil
}
