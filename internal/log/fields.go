package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldClientIP    = "client_ip"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldKind        = "kind"
	FieldTxID        = "transaction_id"
	FieldAmountCents = "amount_cents"
	FieldDate        = "date"
	FieldUserID      = "user_id"
	FieldEmail       = "email"
	FieldExpiresAt   = "expires_at"
	FieldRecords     = "records"
	FieldQueue       = "queue"
	FieldExchange    = "exchange"
	FieldSheetRange  = "sheet_range"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentSession = "session"
	ComponentLedger  = "ledger"
	ComponentAPI     = "api"
	ComponentStorage = "storage"
	ComponentEvents  = "events"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
	ComponentCharts  = "charts"
)

// Operations defines standard operation names
const (
	OpLogin    = "login"
	OpRegister = "register"
	OpRestore  = "restore"
	OpLogout   = "logout"
	OpExpire   = "expire"
	OpLoad     = "load"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpAppend   = "append"
	OpRender   = "render"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
