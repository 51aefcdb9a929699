package log

// Common field names for structured logging.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOwnerID     = "owner_id"
	FieldAccountID   = "account_id"
	FieldTxID        = "transaction_id"
	FieldTxType      = "transaction_type"
	FieldAmount      = "amount"
	FieldCurrency    = "currency"
	FieldCategory    = "category"
	FieldBalance     = "balance"
	FieldPercentUsed = "percent_used"
)

// Components defines standard component names.
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLedger     = "ledger"
	ComponentBudget     = "budget"
	ComponentAccount    = "account"
	ComponentStorage    = "storage"
	ComponentCurrency   = "currency"
	ComponentClassifier = "classifier"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentNotify     = "notify"
)

// Operations defines standard operation names.
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpConvert  = "convert"
	OpClassify = "classify"
	OpAlert    = "alert"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
