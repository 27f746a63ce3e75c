package log

// Attribute keys shared by every component
const (
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldRecordID    = "record_id"
	FieldRecordField = "record_field"
	FieldUser        = "user"
	FieldRole        = "role"
	FieldVersion     = "version"
	FieldChart       = "chart"
	FieldFilter      = "filter"
	FieldCount       = "count"
	FieldSheetsRef   = "sheets_ref"
)

// Component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRecords   = "records"
	ComponentAuth      = "auth"
	ComponentAnalytics = "analytics"
	ComponentCharts    = "charts"
	ComponentExport    = "export"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

// Record operations
const (
	OpCreate = "create"
	OpRead   = "read"
	OpUpdate = "update"
	OpDelete = "delete"
	OpList   = "list"
)

// Values for the "error_type" attribute
const (
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeInternal      = "internal_error"
)
