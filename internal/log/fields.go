package log

// Common field names for structured logging.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldClientIP  = "client_ip"
	FieldError     = "error"

	FieldScope       = "scope"
	FieldDate        = "date"
	FieldRuleID      = "rule_id"
	FieldCadence     = "cadence"
	FieldAmountCents = "amount_cents"
	FieldFundsCents  = "funds_cents"
)

// Standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
)
