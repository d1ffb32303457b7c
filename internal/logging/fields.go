package logging

const (
	// FieldComponent is the standardized key for component names.
	FieldComponent = "component"
	// FieldTxID is the standardized key for transaction identifiers.
	FieldTxID = "tx_id"
	// FieldTxType is the standardized key for transaction types.
	FieldTxType = "tx_type"
	// FieldTarget is the standardized key for target table or resource names.
	FieldTarget = "target"
	// FieldContainerID is the standardized key for container cycle identifiers.
	FieldContainerID = "container_id"
	// FieldResultCode is the standardized key for protocol result codes.
	FieldResultCode = "result_code"
	// FieldState is the standardized key for the engine state.
	FieldState = "state"
	// FieldEventType tags notable lifecycle events in structured logs.
	FieldEventType = "event_type"
	// FieldErrorHint suggests an operator action alongside an error.
	FieldErrorHint = "error_hint"
)
