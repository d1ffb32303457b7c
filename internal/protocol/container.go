package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"recsync/internal/wire"
)

// Version is the protocol version this client speaks. Responses reporting a
// higher version are rejected as unsupported.
const Version = 1

// Dispatcher receives per-transaction and batch-level outcomes while a
// container distributes a response. The queue manager implements it; the
// container never touches the pending queue or storage itself.
type Dispatcher interface {
	// Resolve delivers a transaction whose result fields are final.
	Resolve(tx *Transaction)
	// AuthFailed signals an authentication or unknown-client container
	// result: stored credentials are stale and a re-login is required.
	AuthFailed(result Result)
	// ResponseProcessed fires after a response body has been fully
	// distributed, so the UI collaborator can refresh.
	ResponseProcessed()
}

// Container batches up to a fixed number of transactions into one wire
// payload and parses the matching response. A single container instance is
// reused across cycles; Reset starts a new cycle and must find the in-flight
// list empty.
type Container struct {
	id       int64
	userID   string
	session  string
	inflight []*Transaction

	resultCode    Code
	resultMessage string
}

// ID returns the current cycle identifier.
func (c *Container) ID() int64 { return c.id }

// Result returns the batch-level outcome of the last cycle.
func (c *Container) Result() Result {
	return Result{Code: c.resultCode, Message: c.resultMessage}
}

// InFlight reports how many transactions the current cycle carries.
func (c *Container) InFlight() int { return len(c.inflight) }

// Reset begins a new build cycle: the container id advances by exactly one
// and all per-cycle state clears. Calling Reset with transactions still in
// flight is a programming error.
func (c *Container) Reset() error {
	if len(c.inflight) != 0 {
		return fmt.Errorf("container %d still has %d transactions in flight", c.id, len(c.inflight))
	}
	c.id++
	c.userID = ""
	c.session = ""
	c.resultCode = ResultUndefined
	c.resultMessage = ""
	return nil
}

// Append adds a transaction to the current cycle.
func (c *Container) Append(tx *Transaction) {
	c.inflight = append(c.inflight, tx)
}

// Build assembles the request payload for the current cycle:
// version;containerId;userId;sessionCredential; followed by the transaction
// fragments joined by the message separator, all envelope-encoded.
func (c *Container) Build(userID, sessionCredential string) string {
	c.userID = userID
	c.session = sessionCredential

	fragments := make([]string, len(c.inflight))
	for i, tx := range c.inflight {
		fragments[i] = tx.BuildRequest()
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(Version))
	b.WriteString(wire.FieldSeparator)
	b.WriteString(strconv.FormatInt(c.id, 10))
	b.WriteString(wire.FieldSeparator)
	b.WriteString(wire.EncodeField(userID, wire.FieldSeparator))
	b.WriteString(wire.FieldSeparator)
	b.WriteString(wire.EncodeField(sessionCredential, wire.FieldSeparator))
	b.WriteString(wire.FieldSeparator)
	b.WriteString(strings.Join(fragments, wire.MessageSeparator))

	return wire.EncodeEnvelope([]byte(b.String()))
}

// ProcessResponse validates a response payload and distributes its segments
// to the in-flight transactions. Validation happens in a fixed order: header
// arity and numeric fields, remote version, container id, batch-level result
// code, then body presence. The first failing check fails the whole batch.
//
// Segments map to transactions positionally. A short response leaves the
// unanswered tail in flight with the caller - those transactions stay
// pending and are retransmitted next cycle, which is safe because server
// writes are idempotent.
func (c *Container) ProcessResponse(payload string, nowMillis int64, d Dispatcher) {
	decoded, err := wire.DecodeEnvelope(payload)
	if err != nil {
		c.failAll(Result{Code: ResultSyntaxError, Message: fmt.Sprintf("undecodable response envelope: %v", err)}, nowMillis, d)
		return
	}

	parts := strings.SplitN(string(decoded), wire.FieldSeparator, 5)
	if len(parts) < 5 {
		c.failAll(Result{Code: ResultSyntaxError, Message: fmt.Sprintf("response header has %d fields, want 4 plus body", len(parts))}, nowMillis, d)
		return
	}

	remoteVersion, versionErr := strconv.Atoi(parts[0])
	containerID, idErr := strconv.ParseInt(parts[1], 10, 64)
	code, codeErr := strconv.Atoi(parts[2])
	message := parts[3]
	body := parts[4]

	// Version mismatch outranks id mismatch, which outranks plain syntax
	// problems.
	switch {
	case versionErr == nil && remoteVersion > Version:
		c.failAll(Result{Code: ResultAPIVersionNotSupported, Message: fmt.Sprintf("server speaks version %d, client %d", remoteVersion, Version)}, nowMillis, d)
		return
	case idErr == nil && versionErr == nil && containerID != c.id:
		c.failAll(Result{Code: ResultMismatchingID, Message: fmt.Sprintf("response for container %d, expected %d", containerID, c.id)}, nowMillis, d)
		return
	case versionErr != nil || idErr != nil || codeErr != nil:
		c.failAll(Result{Code: ResultSyntaxError, Message: "unparsable response header"}, nowMillis, d)
		return
	}

	c.resultCode = Code(code)
	c.resultMessage = message

	if c.resultCode.Failed() {
		result := Result{Code: c.resultCode, Message: message}
		if c.resultCode.AuthFailure() {
			d.AuthFailed(result)
		}
		c.failAll(result, nowMillis, d)
		return
	}

	if body == "" {
		c.failAll(Failure(ResultEmptyResponseContainer), nowMillis, d)
		return
	}

	segments := strings.Split(body, wire.MessageSeparator)
	remaining := c.inflight
	c.inflight = nil
	for i, tx := range remaining {
		if i >= len(segments) || segments[i] == "" {
			// Short response: the server has not answered this
			// transaction yet. Leave it pending for the next cycle.
			continue
		}
		if !tx.ResultCode.Success() {
			continue
		}
		tx.ParseResponse(segments[i], nowMillis)
		d.Resolve(tx)
	}

	d.ResponseProcessed()
}

// FailAll resolves every in-flight transaction with a batch-level error and
// clears the in-flight list, unblocking the queue for the next cycle.
func (c *Container) FailAll(result Result, nowMillis int64, d Dispatcher) {
	c.failAll(result, nowMillis, d)
}

func (c *Container) failAll(result Result, nowMillis int64, d Dispatcher) {
	c.resultCode = result.Code
	c.resultMessage = result.Message

	failed := c.inflight
	c.inflight = nil
	for _, tx := range failed {
		tx.Fail(result, nowMillis)
		d.Resolve(tx)
	}
}
