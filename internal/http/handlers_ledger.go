package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"smartcash/internal/core"
	"smartcash/internal/ledger"
	"smartcash/internal/log"
)

type entryRow struct {
	ID       int64
	Kind     string
	Title    string
	Category string
	Amount   string
	Negative bool
	Date     string
}

type dashboardData struct {
	pageData
	Income    string
	Expense   string
	Balance   string
	Entries   []entryRow
	HasChart  bool
	Pending   *entryRow
	LoadError string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	if _, ok := s.requireSession(w, r); !ok {
		return
	}

	data := dashboardData{pageData: s.newPageData(r, "Dashboard")}

	led, err := s.ledger.Load(r.Context())
	if err != nil {
		// A failed refresh keeps the last settled ledger on screen.
		settled, ok := s.ledger.Settled()
		if !ok {
			data.LoadError = "Could not load your transactions. Please try again."
			s.renderStatus(w, r, http.StatusBadGateway, "dashboard.html", data)
			return
		}
		led = settled
		data.LoadError = "Showing cached data; the server could not be reached."
	}

	totals := led.Totals()
	data.Income = totals.Income.Format()
	data.Expense = totals.Expense.Format()
	data.Balance = totals.Balance.Format()
	data.HasChart = len(led.Entries) >= 2

	for _, e := range led.Entries {
		data.Entries = append(data.Entries, toEntryRow(e))
	}

	if key := s.ledger.PendingDelete(); key != nil {
		if target, ok := led.Find(*key); ok {
			row := toEntryRow(target)
			data.Pending = &row
		} else {
			// The record vanished between request and confirmation.
			s.ledger.CancelDelete()
		}
	}

	s.render(w, r, "dashboard.html", data)
}

func toEntryRow(t core.Transaction) entryRow {
	return entryRow{
		ID:       t.ID,
		Kind:     string(t.Kind),
		Title:    t.Title,
		Category: t.Category,
		Amount:   t.Amount.Format(),
		Negative: t.Amount.Cents < 0,
		Date:     t.Date.ISO(),
	}
}

type transactionFormData struct {
	pageData
	Heading     string
	Action      string
	Kind        string
	ID          int64
	FormTitle   string
	Description string
	Category    string
	Amount      string
	Date        string
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSession(w, r); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		kind := core.Kind(r.URL.Query().Get("kind"))
		if !kind.Valid() {
			kind = core.KindExpense
		}
		data := transactionFormData{
			pageData: s.newPageData(r, "New transaction"),
			Heading:  "New transaction",
			Action:   "/transactions/new",
			Kind:     string(kind),
		}
		s.render(w, r, "transaction_form.html", data)
	case http.MethodPost:
		s.handleCreateSubmit(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleCreateSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	kind := core.Kind(r.Form.Get("kind"))
	in, parseErr := parseTransactionForm(r)

	data := transactionFormData{
		pageData:    s.newPageData(r, "New transaction"),
		Heading:     "New transaction",
		Action:      "/transactions/new",
		Kind:        string(kind),
		FormTitle:   in.Title,
		Description: in.Description,
		Category:    in.Category,
		Amount:      r.Form.Get("amount"),
		Date:        r.Form.Get("date"),
	}

	if parseErr != nil {
		data.Error = parseErr.Error()
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "transaction_form.html", data)
		return
	}

	if _, err := s.ledger.Create(r.Context(), kind, in); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			data.Error = verr.Error()
			s.renderStatus(w, r, http.StatusUnprocessableEntity, "transaction_form.html", data)
			return
		}
		s.logger.ErrorContext(r.Context(), "Create transaction failed",
			log.FieldOperation, log.OpCreate,
			log.FieldKind, string(kind),
			log.FieldError, err.Error())
		data.Error = "Could not save the transaction. Please try again."
		s.renderStatus(w, r, http.StatusBadGateway, "transaction_form.html", data)
		return
	}

	redirectWithToast(w, r, "/", "created")
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSession(w, r); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleEditForm(w, r)
	case http.MethodPost:
		s.handleEditSubmit(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := parseKindAndID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	t, err := s.ledger.Get(r.Context(), kind, id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Fetch transaction failed",
			log.FieldOperation, log.OpLoad,
			log.FieldKind, string(kind),
			log.FieldTxID, id,
			log.FieldError, err.Error())
		http.NotFound(w, r)
		return
	}

	data := transactionFormData{
		pageData:    s.newPageData(r, "Edit transaction"),
		Heading:     "Edit transaction",
		Action:      fmt.Sprintf("/transactions/edit?kind=%s&id=%d", kind, id),
		Kind:        string(kind),
		ID:          id,
		FormTitle:   t.Title,
		Description: t.Description,
		Category:    t.Category,
		Amount:      amountInputValue(t.Amount),
		Date:        t.Date.ISO(),
	}
	s.render(w, r, "transaction_form.html", data)
}

func (s *Server) handleEditSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	kind, id, ok := parseKindAndID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	in, parseErr := parseTransactionForm(r)

	data := transactionFormData{
		pageData:    s.newPageData(r, "Edit transaction"),
		Heading:     "Edit transaction",
		Action:      fmt.Sprintf("/transactions/edit?kind=%s&id=%d", kind, id),
		Kind:        string(kind),
		ID:          id,
		FormTitle:   in.Title,
		Description: in.Description,
		Category:    in.Category,
		Amount:      r.Form.Get("amount"),
		Date:        r.Form.Get("date"),
	}

	if parseErr != nil {
		data.Error = parseErr.Error()
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "transaction_form.html", data)
		return
	}

	if _, err := s.ledger.Update(r.Context(), kind, id, in); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			data.Error = verr.Error()
			s.renderStatus(w, r, http.StatusUnprocessableEntity, "transaction_form.html", data)
			return
		}
		s.logger.ErrorContext(r.Context(), "Update transaction failed",
			log.FieldOperation, log.OpUpdate,
			log.FieldKind, string(kind),
			log.FieldTxID, id,
			log.FieldError, err.Error())
		data.Error = "Could not update the transaction. Please try again."
		s.renderStatus(w, r, http.StatusBadGateway, "transaction_form.html", data)
		return
	}

	redirectWithToast(w, r, "/", "updated")
}

// handleRequestDelete only marks the record; nothing is removed until the
// confirmation on the dashboard banner.
func (s *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if _, ok := s.requireSession(w, r); !ok {
		return
	}
	kind, id, ok := parseKindAndID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.ledger.RequestDelete(core.Key{Kind: kind, ID: id})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if _, ok := s.requireSession(w, r); !ok {
		return
	}

	if err := s.ledger.ConfirmDelete(r.Context()); err != nil {
		if errors.Is(err, ledger.ErrNoPendingDelete) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.logger.ErrorContext(r.Context(), "Delete transaction failed",
			log.FieldOperation, log.OpDelete,
			log.FieldError, err.Error())
		redirectWithToast(w, r, "/", "deletefailed")
		return
	}
	redirectWithToast(w, r, "/", "deleted")
}

func (s *Server) handleCancelDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if _, ok := s.requireSession(w, r); !ok {
		return
	}
	s.ledger.CancelDelete()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleChart renders the running-balance trend as a PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	if _, ok := s.requireSession(w, r); !ok {
		return
	}

	led, ok := s.ledger.Settled()
	if !ok {
		loaded, err := s.ledger.Load(r.Context())
		if err != nil {
			http.Error(w, "chart unavailable", http.StatusServiceUnavailable)
			return
		}
		led = loaded
	}

	// The cache key fingerprints the ledger, so a mutation naturally misses.
	key := chartCacheKey(led)
	img, ok := s.chartCache.Get(key)
	if ok {
		serveChart(w, img)
		return
	}

	img, err := s.charts.RunningBalancePNG(led.RunningSeries())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Chart rendering failed",
			log.FieldOperation, log.OpRender,
			log.FieldError, err.Error())
		http.Error(w, "chart unavailable", http.StatusInternalServerError)
		return
	}
	if img == nil {
		http.Error(w, "not enough data", http.StatusNotFound)
		return
	}

	s.chartCache.Set(key, img)
	serveChart(w, img)
}

func serveChart(w http.ResponseWriter, img []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	_, _ = w.Write(img)
}

// chartCacheKey fingerprints the ledger contents that drive the series.
func chartCacheKey(led ledger.Ledger) string {
	latest := ""
	if len(led.Entries) > 0 {
		latest = led.Entries[0].Date.ISO()
	}
	return fmt.Sprintf("%d:%d:%s", len(led.Entries), led.Balance().Cents, latest)
}

// amountInputValue renders the magnitude as a plain decimal for form inputs.
func amountInputValue(m core.Money) string {
	cents := m.Abs().Cents
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
