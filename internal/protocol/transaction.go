package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"recsync/internal/wire"
)

// TxType identifies the kind of work a transaction performs.
type TxType string

const (
	TxNop     TxType = "NOP"
	TxSession TxType = "SESSION"
	TxInsert  TxType = "INSERT"
	TxUpdate  TxType = "UPDATE"
	TxDelete  TxType = "DELETE"
	TxList    TxType = "LIST"
	TxSelect  TxType = "SELECT"
)

var txTypeSet = map[TxType]struct{}{
	TxNop:     {},
	TxSession: {},
	TxInsert:  {},
	TxUpdate:  {},
	TxDelete:  {},
	TxList:    {},
	TxSelect:  {},
}

// KnownTxType reports whether value names a transaction type.
func KnownTxType(value string) bool {
	_, ok := txTypeSet[TxType(value)]
	return ok
}

// Write reports whether the type mutates server state. Only write
// transactions are worth replaying across a restart.
func (t TxType) Write() bool {
	return t == TxInsert || t == TxUpdate || t == TxDelete
}

// Special target names used for typed-configuration sync.
const (
	TargetModified = ".modified"
	TargetActuals  = ".actuals"
)

// Field is one ordered key/value pair of a transaction payload.
type Field struct {
	Key   string
	Value string
}

// Transaction is a single unit of work: a read or write against one target
// table or resource. Identity, type, target, and the field map are fixed at
// construction; only the result fields and timestamps mutate afterwards.
type Transaction struct {
	ID     int64
	Type   TxType
	Target string
	Fields []Field

	ResultCode    Code
	ResultMessage string

	// Epoch milliseconds, zero until set.
	SentAt   int64
	ResultAt int64
	ClosedAt int64
}

// NewTransaction constructs a transaction in its initial, unsent state.
func NewTransaction(id int64, txType TxType, target string, fields []Field) *Transaction {
	return &Transaction{
		ID:     id,
		Type:   txType,
		Target: target,
		Fields: fields,
	}
}

// Field returns the value for key, or "" when absent.
func (t *Transaction) Field(key string) string {
	for _, f := range t.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// BuildRequest emits the wire fragment for this transaction:
// id;type;target;key1;value1;... with every value field-encoded and
// message-separator occurrences rewritten.
func (t *Transaction) BuildRequest() string {
	parts := make([]string, 0, 3+2*len(t.Fields))
	parts = append(parts,
		strconv.FormatInt(t.ID, 10),
		string(t.Type),
		wire.EncodeField(t.Target, wire.FieldSeparator),
	)
	for _, f := range t.Fields {
		parts = append(parts,
			wire.EncodeField(f.Key, wire.FieldSeparator),
			wire.EncodeField(wire.EscapeSeparator(f.Value), wire.FieldSeparator),
		)
	}
	return strings.Join(parts, wire.FieldSeparator)
}

// ParseResponse applies one response fragment (id;resultCode;message) to the
// transaction. A fragment carrying a different id forces a permanent
// mismatching-id result; an unrecognized code forces transaction-invalid.
// Otherwise code and message are adopted verbatim.
func (t *Transaction) ParseResponse(fragment string, nowMillis int64) {
	t.ResultAt = nowMillis

	parts := strings.SplitN(fragment, wire.FieldSeparator, 3)
	if len(parts) < 2 {
		t.ResultCode = ResultSyntaxError
		t.ResultMessage = fmt.Sprintf("malformed response fragment %q", fragment)
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id != t.ID {
		t.ResultCode = ResultMismatchingID
		t.ResultMessage = fmt.Sprintf("response for transaction %s, expected %d", parts[0], t.ID)
		return
	}

	code, err := strconv.Atoi(parts[1])
	if err != nil || !Code(code).Known() {
		t.ResultCode = ResultTransactionInvalid
		t.ResultMessage = fmt.Sprintf("unrecognized result code %q", parts[1])
		return
	}

	t.ResultCode = Code(code)
	if len(parts) == 3 {
		t.ResultMessage = parts[2]
	} else {
		t.ResultMessage = ""
	}
}

// Fail stamps the transaction with a container-level result.
func (t *Transaction) Fail(result Result, nowMillis int64) {
	t.ResultCode = result.Code
	t.ResultMessage = result.Message
	t.ResultAt = nowMillis
}

// MarshalRecord serializes the transaction for the key/value cache using the
// same delimited-record dialect as the wire protocol.
func (t *Transaction) MarshalRecord() string {
	fields := make([]string, 0, 8+2*len(t.Fields))
	fields = append(fields,
		strconv.FormatInt(t.ID, 10),
		string(t.Type),
		t.Target,
		strconv.FormatInt(t.SentAt, 10),
		strconv.FormatInt(t.ResultAt, 10),
		strconv.FormatInt(t.ClosedAt, 10),
		strconv.Itoa(int(t.ResultCode)),
		t.ResultMessage,
	)
	for _, f := range t.Fields {
		fields = append(fields, f.Key, f.Value)
	}
	return wire.JoinRecord(fields, wire.FieldSeparator)
}

// UnmarshalRecord reconstructs a transaction from its cache record.
func UnmarshalRecord(record string) (*Transaction, error) {
	fields := wire.SplitRecord(record, wire.FieldSeparator)
	if len(fields) < 8 {
		return nil, fmt.Errorf("transaction record has %d fields, want at least 8", len(fields))
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("transaction id %q: %w", fields[0], err)
	}
	if !KnownTxType(fields[1]) {
		return nil, fmt.Errorf("unknown transaction type %q", fields[1])
	}
	sentAt, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("sent timestamp %q: %w", fields[3], err)
	}
	resultAt, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("result timestamp %q: %w", fields[4], err)
	}
	closedAt, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("closed timestamp %q: %w", fields[5], err)
	}
	code, err := strconv.Atoi(fields[6])
	if err != nil {
		return nil, fmt.Errorf("result code %q: %w", fields[6], err)
	}

	tx := &Transaction{
		ID:            id,
		Type:          TxType(fields[1]),
		Target:        fields[2],
		SentAt:        sentAt,
		ResultAt:      resultAt,
		ClosedAt:      closedAt,
		ResultCode:    Code(code),
		ResultMessage: fields[7],
	}
	for i := 8; i+1 < len(fields); i += 2 {
		tx.Fields = append(tx.Fields, Field{Key: fields[i], Value: fields[i+1]})
	}
	return tx, nil
}
