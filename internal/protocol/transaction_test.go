package protocol_test

import (
	"strings"
	"testing"

	"recsync/internal/protocol"
)

func TestBuildRequest(t *testing.T) {
	tx := protocol.NewTransaction(7, protocol.TxInsert, "contacts", []protocol.Field{
		{Key: "name", Value: "Doe; John"},
		{Key: "note", Value: `said "hi"`},
	})
	got := tx.BuildRequest()
	want := `7;INSERT;contacts;name;"Doe; John";note;"said ""hi"""`
	if got != want {
		t.Fatalf("BuildRequest = %q, want %q", got, want)
	}
}

func TestBuildRequestEscapesMessageSeparator(t *testing.T) {
	tx := protocol.NewTransaction(3, protocol.TxUpdate, "notes", []protocol.Field{
		{Key: "body", Value: "a|##|b"},
	})
	got := tx.BuildRequest()
	if strings.Contains(got, "|##|") {
		t.Fatalf("request fragment %q leaks the message separator", got)
	}
	if !strings.Contains(got, "|#~|") {
		t.Fatalf("request fragment %q should carry the replacement sequence", got)
	}
}

func TestParseResponseAdoptsCodeAndMessage(t *testing.T) {
	tx := protocol.NewTransaction(12, protocol.TxUpdate, "contacts", nil)
	tx.ParseResponse("12;20;stored", 1000)
	if tx.ResultCode != protocol.ResultOK {
		t.Fatalf("ResultCode = %v, want %v", tx.ResultCode, protocol.ResultOK)
	}
	if tx.ResultMessage != "stored" {
		t.Fatalf("ResultMessage = %q", tx.ResultMessage)
	}
	if tx.ResultAt != 1000 {
		t.Fatalf("ResultAt = %d, want 1000", tx.ResultAt)
	}
}

func TestParseResponseMismatchingID(t *testing.T) {
	tx := protocol.NewTransaction(12, protocol.TxUpdate, "contacts", nil)
	tx.ParseResponse("13;20;stored", 1000)
	if tx.ResultCode != protocol.ResultMismatchingID {
		t.Fatalf("ResultCode = %v, want %v", tx.ResultCode, protocol.ResultMismatchingID)
	}
	if !tx.ResultCode.Permanent() {
		t.Fatal("mismatching id must be permanent")
	}
}

func TestParseResponseUnknownCode(t *testing.T) {
	tx := protocol.NewTransaction(12, protocol.TxUpdate, "contacts", nil)
	tx.ParseResponse("12;99;whatever", 1000)
	if tx.ResultCode != protocol.ResultTransactionInvalid {
		t.Fatalf("ResultCode = %v, want %v", tx.ResultCode, protocol.ResultTransactionInvalid)
	}
}

func TestParseResponseWithoutMessage(t *testing.T) {
	tx := protocol.NewTransaction(5, protocol.TxNop, "", nil)
	tx.ParseResponse("5;23", 1000)
	if tx.ResultCode != protocol.ResultClientNoop || tx.ResultMessage != "" {
		t.Fatalf("got %v %q", tx.ResultCode, tx.ResultMessage)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	tx := protocol.NewTransaction(42, protocol.TxDelete, "contacts", []protocol.Field{
		{Key: "id", Value: "abc-123"},
		{Key: "reason", Value: "dup; removed\nby user"},
	})
	tx.SentAt = 111
	tx.ResultAt = 222
	tx.ClosedAt = 333
	tx.ResultCode = protocol.ResultOK
	tx.ResultMessage = "gone"

	restored, err := protocol.UnmarshalRecord(tx.MarshalRecord())
	if err != nil {
		t.Fatalf("UnmarshalRecord failed: %v", err)
	}
	if restored.ID != tx.ID || restored.Type != tx.Type || restored.Target != tx.Target {
		t.Fatalf("identity mismatch: %#v", restored)
	}
	if restored.SentAt != 111 || restored.ResultAt != 222 || restored.ClosedAt != 333 {
		t.Fatalf("timestamps mismatch: %#v", restored)
	}
	if restored.ResultCode != protocol.ResultOK || restored.ResultMessage != "gone" {
		t.Fatalf("result mismatch: %#v", restored)
	}
	if len(restored.Fields) != 2 || restored.Field("reason") != "dup; removed\nby user" {
		t.Fatalf("fields mismatch: %#v", restored.Fields)
	}
}

func TestUnmarshalRecordRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"1;2;3",
		"x;INSERT;t;0;0;0;0;m",
		"1;BOGUS;t;0;0;0;0;m",
		"1;INSERT;t;x;0;0;0;m",
	}
	for _, record := range cases {
		if _, err := protocol.UnmarshalRecord(record); err == nil {
			t.Fatalf("expected error for record %q", record)
		}
	}
}

func TestTxTypeWrite(t *testing.T) {
	writes := []protocol.TxType{protocol.TxInsert, protocol.TxUpdate, protocol.TxDelete}
	reads := []protocol.TxType{protocol.TxNop, protocol.TxSession, protocol.TxList, protocol.TxSelect}
	for _, txType := range writes {
		if !txType.Write() {
			t.Fatalf("%s should be a write", txType)
		}
	}
	for _, txType := range reads {
		if txType.Write() {
			t.Fatalf("%s should not be a write", txType)
		}
	}
}
