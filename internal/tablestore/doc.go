// Package tablestore holds the in-memory record tables that read
// transactions feed.
//
// LIST responses replace a table wholesale, SELECT responses upsert
// individual rows by their leading key field, and the special .modified and
// .actuals targets merge into a flat settings map used by the
// typed-configuration collaborator. The UI layer reads snapshots; it never
// mutates tables directly.
package tablestore
