package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"recsync/internal/protocol"
	"recsync/internal/testsupport"
	"recsync/internal/transport"
	"recsync/internal/wire"
)

// syncHandler is a minimal server for end-to-end tests: it answers the ping
// probe, accepts containers on /sync and resolves every transaction with OK,
// and reports no remote changes on /poll.
func syncHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/poll", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0")
	})
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		decoded, err := wire.DecodeEnvelope(r.PostFormValue("container"))
		if err != nil {
			t.Errorf("decode container: %v", err)
			return
		}
		parts := strings.SplitN(string(decoded), wire.FieldSeparator, 5)
		if len(parts) != 5 {
			t.Errorf("container header has %d parts", len(parts))
			return
		}
		containerID := parts[1]

		var segments []string
		for _, fragment := range strings.Split(parts[4], wire.MessageSeparator) {
			txFields := strings.SplitN(fragment, wire.FieldSeparator, 3)
			txID := txFields[0]
			if len(txFields) > 1 && txFields[1] == string(protocol.TxSession) {
				segments = append(segments, txID+";20;session=integration-tok;sessionlifetime=7200")
				continue
			}
			segments = append(segments, txID+";20;stored")
		}

		body := fmt.Sprintf("%d;%s;20;;%s",
			protocol.Version, containerID, strings.Join(segments, wire.MessageSeparator))
		fmt.Fprint(w, wire.EncodeEnvelope([]byte(body)))
	})
	return mux
}

func TestEngineAgainstHTTPServer(t *testing.T) {
	server := httptest.NewServer(syncHandler(t))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithServerURL(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	clock := &fakeClock{now: time.Now()}
	eng := New(cfg, store, transport.New(cfg), nil, WithClock(clock.Now))
	ctx := context.Background()

	if err := eng.bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	var resolved []*protocol.Transaction
	if _, err := eng.Enqueue(ctx, protocol.TxInsert, "contacts", []protocol.Field{
		{Key: "name", Value: "Ada"},
	}, func(tx *protocol.Transaction) {
		resolved = append(resolved, tx)
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// First tick verifies the URL, the second exchanges the container.
	eng.tick(ctx)
	eng.tick(ctx)

	if eng.session.credential != "integration-tok" {
		t.Fatalf("credential = %q, want integration-tok", eng.session.credential)
	}
	if !eng.session.started {
		t.Fatal("session not started after exchange")
	}
	if len(resolved) != 1 || resolved[0].ResultCode != protocol.ResultOK {
		t.Fatalf("resolved = %v, want one OK insert", resolved)
	}
	if len(eng.pending) != 0 {
		t.Fatalf("pending after exchange = %d, want 0", len(eng.pending))
	}

	done, err := eng.journal.ListDone(ctx)
	if err != nil {
		t.Fatalf("ListDone: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("done records = %d, want session + insert", len(done))
	}
}

func TestEngineStartStopLifecycle(t *testing.T) {
	server := httptest.NewServer(syncHandler(t))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithServerURL(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	eng := New(cfg, store, transport.New(cfg), nil)

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := eng.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded")
	}

	// A second engine on the same state dir must refuse to start.
	other := New(cfg, testsupport.MustOpenStore(t, cfg), transport.New(cfg), nil)
	if err := other.Start(context.Background()); err == nil {
		other.Stop()
		t.Fatal("second instance acquired the state lock")
	}

	eng.Stop()
	eng.Stop() // idempotent

	// The lock is free again after Stop.
	if err := other.Start(context.Background()); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
	other.Stop()
}
