package audithook

// Action constants for audit events.
const (
	// Registry actions
	ActionTenantCreated = "tenant.created"
	ActionEntryOpened   = "entry.opened"

	// Value actions
	ActionDeposit  = "vault.deposit"
	ActionWithdraw = "vault.withdraw"
	ActionCredit   = "wallet.credited"

	// Session actions
	ActionSessionStarted = "session.started"
	ActionSessionSettled = "session.settled"

	// Failure actions
	ActionOperationRejected  = "operation.rejected"
	ActionInvariantViolation = "invariant.violated"
)

// Resource constants for audit events.
const (
	ResourceTenant  = "tenant"
	ResourceEntry   = "entry"
	ResourceWallet  = "wallet"
	ResourceSession = "session"
	ResourceLedger  = "ledger"
)

// Category constants for audit events.
const (
	CategoryRegistry  = "registry"
	CategoryCustody   = "custody"
	CategoryParking   = "parking"
	CategoryIntegrity = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
