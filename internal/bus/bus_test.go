package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"figlens/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func recvEvent(t *testing.T, ch <-chan domain.SelectionEvent) domain.SelectionEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for selection event")
		return domain.SelectionEvent{}
	}
}

// --- Selection events ---

func TestPublish_DeliversInOrder(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	b.Publish(domain.SelectionEvent{FileKey: "a"})
	b.Publish(domain.SelectionEvent{FileKey: "b"})
	b.Publish(domain.SelectionEvent{FileKey: "c"})

	ch := b.Subscribe()
	for _, want := range []string{"a", "b", "c"} {
		if ev := recvEvent(t, ch); ev.FileKey != want {
			t.Fatalf("expected %s, got %s", want, ev.FileKey)
		}
	}
}

func TestPublish_FullBufferDropsOldest(t *testing.T) {
	b := New(2, testLogger())
	defer b.Close()

	b.Publish(domain.SelectionEvent{FileKey: "a"})
	b.Publish(domain.SelectionEvent{FileKey: "b"})
	b.Publish(domain.SelectionEvent{FileKey: "c"})

	ch := b.Subscribe()
	if ev := recvEvent(t, ch); ev.FileKey != "b" {
		t.Fatalf("expected oldest event shed, got %s first", ev.FileKey)
	}
	if ev := recvEvent(t, ch); ev.FileKey != "c" {
		t.Fatalf("expected newest event kept, got %s", ev.FileKey)
	}
}

func TestPublish_AfterCloseIsNoop(t *testing.T) {
	b := New(2, testLogger())
	b.Close()

	// Must not panic on the closed channel
	b.Publish(domain.SelectionEvent{FileKey: "late"})

	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("expected closed, drained channel")
	}
}

func TestClose_Idempotent(t *testing.T) {
	b := New(2, testLogger())
	b.Close()
	b.Close()
}

// --- Updates ---

func TestSendUpdate_FansOutToAllHandlers(t *testing.T) {
	b := New(2, testLogger())
	defer b.Close()

	var got []string
	b.OnUpdate("panel", func(u domain.Update) { got = append(got, "panel") })
	b.OnUpdate("notify", func(u domain.Update) { got = append(got, "notify") })

	b.SendUpdate(domain.Update{Rev: 1})

	if len(got) != 2 {
		t.Fatalf("expected both handlers called, got %v", got)
	}
}

func TestSendUpdate_NoHandlers(t *testing.T) {
	b := New(2, testLogger())
	defer b.Close()

	// Only logs a warning
	b.SendUpdate(domain.Update{Rev: 1})
}

func TestOnUpdate_SameNameReplaces(t *testing.T) {
	b := New(2, testLogger())
	defer b.Close()

	calls := 0
	b.OnUpdate("panel", func(u domain.Update) { calls += 10 })
	b.OnUpdate("panel", func(u domain.Update) { calls++ })

	b.SendUpdate(domain.Update{Rev: 1})

	if calls != 1 {
		t.Fatalf("expected replacement handler only, got %d", calls)
	}
}

func TestSendUpdate_CarriesPayload(t *testing.T) {
	b := New(2, testLogger())
	defer b.Close()

	var got domain.Update
	b.OnUpdate("panel", func(u domain.Update) { got = u })

	nodes := []*domain.Node{{ID: "1:1", Name: "Box", Kind: "RECTANGLE", Visible: true}}
	b.SendUpdate(domain.Update{Rev: 7, FileKey: "abc", Data: nodes})

	if got.Rev != 7 || got.FileKey != "abc" || len(got.Data) != 1 || got.Data[0].ID != "1:1" {
		t.Fatalf("update payload wrong: %+v", got)
	}
}
