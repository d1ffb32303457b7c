// Package protocol defines the batched sync wire protocol: result codes,
// the Transaction unit of work, and the Container that carries up to a
// fixed number of transactions per request/response cycle.
//
// Transactions are immutable after construction except for their result
// fields and timestamps. Containers own the batch-level result and
// distribute per-transaction outcomes positionally: the Nth response segment
// belongs to the Nth in-flight transaction. Each segment's embedded id is
// still validated against the transaction it lands on, and a mismatch
// resolves that transaction as a permanent failure instead of applying the
// payload to the wrong unit of work.
package protocol
