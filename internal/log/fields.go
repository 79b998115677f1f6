package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
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
	FieldOwner       = "owner"
	FieldTable       = "table"
	FieldRows        = "rows"
	FieldAmountCents = "amount_cents"
	FieldExpenseType = "expense_type"
	FieldPassengers  = "passengers"
	FieldDate        = "date"
	FieldStart       = "start"
	FieldEnd         = "end"
	FieldGranularity = "granularity"
	FieldEventKind   = "event_kind"
	FieldBackend     = "backend"
	FieldBytes       = "bytes"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRecords   = "records"
	ComponentReport    = "report"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentAuth      = "auth"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

const (
	OpInit    = "init"
	OpAppend  = "append"
	OpRead    = "read"
	OpPublish = "publish"
	OpMirror  = "mirror"
)

// Fields is a small builder for slog key/value pairs.
type Fields map[string]any

func NewFields() Fields { return make(Fields) }

func (f Fields) With(key string, value any) Fields {
	f[key] = value
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithOwner(owner string) Fields {
	f[FieldOwner] = owner
	return f
}

func (f Fields) WithRequest(method, path, query string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

// Args flattens the fields into slog arguments.
func (f Fields) Args() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
