// Package wire implements the textual encoding shared by the sync request
// and response payloads.
//
// A payload is a semicolon-delimited record with CSV-style double-quote
// quoting, wrapped in a URL- and form-safe base64 envelope. Transactions
// inside a container body are delimited by a reserved multi-character
// separator; occurrences of that separator inside field values are rewritten
// to a look-alike sequence before transport and are not restored on the far
// side.
//
// Treat this package as the single source of truth for the wire dialect;
// both the container builder and the response parser go through it.
package wire
