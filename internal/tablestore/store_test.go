package tablestore_test

import (
	"testing"

	"recsync/internal/protocol"
	"recsync/internal/tablestore"
)

func TestListReplacesTable(t *testing.T) {
	store := tablestore.New()
	store.Merge(protocol.TxList, "contacts", "1;Ada\n2;Bob")
	store.Merge(protocol.TxList, "contacts", "3;Cem")

	rows := store.Snapshot("contacts")
	if len(rows) != 1 || rows[0][0] != "3" || rows[0][1] != "Cem" {
		t.Fatalf("snapshot = %#v", rows)
	}
}

func TestSelectUpsertsByKey(t *testing.T) {
	store := tablestore.New()
	store.Merge(protocol.TxList, "contacts", "1;Ada\n2;Bob")
	store.Merge(protocol.TxSelect, "contacts", "2;Bobby\n4;Dee")

	rows := store.Snapshot("contacts")
	if len(rows) != 3 {
		t.Fatalf("snapshot has %d rows: %#v", len(rows), rows)
	}
	if rows[1][1] != "Bobby" {
		t.Fatalf("row 2 not updated: %#v", rows[1])
	}
	if rows[2][0] != "4" {
		t.Fatalf("new row not appended: %#v", rows[2])
	}
}

func TestQuotedFieldsSurviveMerge(t *testing.T) {
	store := tablestore.New()
	store.Merge(protocol.TxList, "notes", "1;\"line1\nline2\"\n2;plain")

	rows := store.Snapshot("notes")
	if len(rows) != 2 {
		t.Fatalf("snapshot has %d rows: %#v", len(rows), rows)
	}
	if rows[0][1] != "line1\nline2" {
		t.Fatalf("quoted newline lost: %q", rows[0][1])
	}
}

func TestConfigTargetsMergeIntoSettings(t *testing.T) {
	store := tablestore.New()
	store.Merge(protocol.TxList, protocol.TargetModified, "pagesize;50\ntheme;dark")
	store.Merge(protocol.TxSelect, protocol.TargetActuals, "pagesize;100")

	if value, ok := store.Setting("theme"); !ok || value != "dark" {
		t.Fatalf("theme = %q ok=%v", value, ok)
	}
	if value, _ := store.Setting("pagesize"); value != "100" {
		t.Fatalf("pagesize = %q, want latest merge to win", value)
	}
	if len(store.Tables()) != 0 {
		t.Fatalf("config targets must not create tables: %v", store.Tables())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := tablestore.New()
	store.Merge(protocol.TxList, "contacts", "1;Ada")

	rows := store.Snapshot("contacts")
	rows[0][1] = "mutated"

	fresh := store.Snapshot("contacts")
	if fresh[0][1] != "Ada" {
		t.Fatal("snapshot must not alias internal state")
	}
}
