package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"smartcash/internal/core"
	"smartcash/internal/log"
	"smartcash/internal/session"
)

// toastMessages maps flash keys carried in the query string to the text the
// toast shows. Unknown keys render nothing.
var toastMessages = map[string]string{
	"welcome":      "Welcome back!",
	"registered":   "Account created, you are signed in.",
	"created":      "Transaction saved.",
	"updated":      "Transaction updated.",
	"deleted":      "Transaction deleted.",
	"deletefailed": "Could not delete the transaction. Please try again.",
	"profile":      "Profile updated.",
	"loggedout":    "You have been signed out.",
	"expired":      "Your session expired, please sign in again.",
	"signin":       "Please sign in to continue.",
}

type pageData struct {
	Title string
	User  *core.User
	Toast string
	Error string
}

func (s *Server) newPageData(r *http.Request, title string) pageData {
	data := pageData{Title: title}
	if sess := s.sessions.Current(); sess != nil {
		user := sess.User
		data.User = &user
	}
	data.Toast = toastMessages[r.URL.Query().Get("toast")]
	return data
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender,
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// requireSession gates a handler behind authentication. Anonymous requests
// are redirected to the login page and false is returned.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess := s.sessions.Current()
	if sess == nil {
		redirectWithToast(w, r, "/login", "signin")
		return nil, false
	}
	return sess, true
}

func redirectWithToast(w http.ResponseWriter, r *http.Request, path, toast string) {
	u := url.URL{Path: path}
	if toast != "" {
		u.RawQuery = "toast=" + url.QueryEscape(toast)
	}
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

// parseTransactionForm reads the shared income/expense form fields. The
// amount arrives as a decimal magnitude; the sign is decided later by the
// kind.
func parseTransactionForm(r *http.Request) (core.TransactionInput, error) {
	var in core.TransactionInput

	in.Title = sanitizeInput(r.Form.Get("title"))
	in.Description = sanitizeInput(r.Form.Get("description"))
	in.Category = sanitizeInput(r.Form.Get("category"))

	amountStr := strings.TrimSpace(r.Form.Get("amount"))
	if amountStr != "" {
		cents, err := core.ParseDecimalToCents(amountStr)
		if err != nil {
			return in, err
		}
		in.Amount = core.Money{Cents: cents}
	}

	dateStr := strings.TrimSpace(r.Form.Get("date"))
	if dateStr != "" {
		date, err := core.ParseDate(dateStr)
		if err != nil {
			return in, err
		}
		in.Date = date
	}

	return in, nil
}

// parseKindAndID reads the record reference from form or query values.
func parseKindAndID(r *http.Request) (core.Kind, int64, bool) {
	kind := core.Kind(strings.TrimSpace(r.FormValue("kind")))
	if !kind.Valid() {
		return "", 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("id")), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return kind, id, true
}

// sanitizeInput trims whitespace and strips control characters except tab,
// newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	w.WriteHeader(http.StatusMethodNotAllowed)
}
