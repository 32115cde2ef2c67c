package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestGetOrCreateReturnsEmptySessionForNewID(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, 10)
	sess := s.GetOrCreate("s1")
	if sess == nil {
		t.Fatal("expected a session, got nil")
	}
	if len(sess.Messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(sess.Messages))
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 tracked session, got %d", s.Len())
	}
}

func TestGetOrCreateReturnsSameSessionPointer(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, 10)
	first := s.GetOrCreate("s1")
	second := s.GetOrCreate("s1")
	if first != second {
		t.Fatal("expected repeated GetOrCreate to return the same *Session")
	}
}

func TestAppendThroughSessionIsVisibleOnNextLookup(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, 10)
	sess := s.GetOrCreate("s1")
	sess.Messages = append(sess.Messages, Message{Role: RoleUser, Content: "hi"})

	again := s.GetOrCreate("s1")
	if len(again.Messages) != 1 || again.Messages[0].Content != "hi" {
		t.Fatalf("expected appended message to persist, got %+v", again.Messages)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, 10)
	s.RecordTurn("a", "hello", "hi there")

	if got := s.GetOrCreate("b").Messages; len(got) != 0 {
		t.Fatalf("session b should not see session a's messages, got %+v", got)
	}
	if got := s.GetOrCreate("a").Messages; len(got) != 2 {
		t.Fatalf("session a should keep its turn, got %+v", got)
	}
}

func TestRecordTurnAppendsUserThenAssistant(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, 10)
	s.RecordTurn("s1", "question", "answer")
	s.RecordTurn("s1", "followup", "reply")

	msgs := s.GetOrCreate("s1").Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages after 2 turns, got %d", len(msgs))
	}
	wantRoles := []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("message %d: expected role %q, got %q", i, want, msgs[i].Role)
		}
	}
	if msgs[2].Content != "followup" || msgs[3].Content != "reply" {
		t.Errorf("unexpected second turn contents: %+v", msgs[2:])
	}
}

func TestClearUnknownIDIsNoOp(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, 10)
	s.RecordTurn("known", "a", "b")
	s.Clear("unknown")

	if s.Len() != 1 {
		t.Fatalf("expected 1 session after clearing unknown id, got %d", s.Len())
	}
}

func TestClearRemovesSession(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, 10)
	s.RecordTurn("s1", "a", "b")
	s.Clear("s1")

	if got := s.GetOrCreate("s1").Messages; len(got) != 0 {
		t.Fatalf("expected empty history after clear, got %+v", got)
	}
}

func TestExpiredSessionIsRecreatedEmpty(t *testing.T) {
	t.Parallel()

	s := New(10*time.Millisecond, 10)
	s.RecordTurn("s1", "a", "b")

	time.Sleep(30 * time.Millisecond)

	if got := s.GetOrCreate("s1").Messages; len(got) != 0 {
		t.Fatalf("expected expired session to come back empty, got %+v", got)
	}
}

func TestSweepRemovesExpiredSessions(t *testing.T) {
	t.Parallel()

	s := New(10*time.Millisecond, 10)
	s.RecordTurn("old", "a", "b")
	time.Sleep(30 * time.Millisecond)
	s.RecordTurn("fresh", "c", "d")

	removed := s.sweep()
	if removed != 1 {
		t.Fatalf("expected sweep to remove 1 session, got %d", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 session after sweep, got %d", s.Len())
	}
	if got := s.GetOrCreate("fresh").Messages; len(got) != 2 {
		t.Fatalf("fresh session should survive sweep, got %+v", got)
	}
}

func TestCapacityEvictsOldestUpdatedFirst(t *testing.T) {
	t.Parallel()

	s := New(time.Hour, 2)
	s.RecordTurn("first", "a", "b")
	time.Sleep(2 * time.Millisecond)
	s.RecordTurn("second", "c", "d")
	time.Sleep(2 * time.Millisecond)
	// Touch "first" so "second" is now the oldest.
	s.RecordTurn("first", "e", "f")
	time.Sleep(2 * time.Millisecond)
	s.RecordTurn("third", "g", "h")

	if s.Len() != 2 {
		t.Fatalf("expected capacity of 2 to hold, got %d sessions", s.Len())
	}
	if got := s.GetOrCreate("second").Messages; len(got) != 0 {
		t.Fatalf("expected oldest-updated session to be evicted, got %+v", got)
	}
	if got := s.GetOrCreate("first").Messages; len(got) != 4 {
		t.Fatalf("recently touched session should survive eviction, got %d messages", len(got))
	}
}

func TestConcurrentAccessDoesNotRace(t *testing.T) {
	t.Parallel()

	s := New(50*time.Millisecond, 32)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartSweeper(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", n%4)
			for j := 0; j < 50; j++ {
				s.GetOrCreate(id)
				s.RecordTurn(id, "u", "a")
				s.Len()
				if j%10 == 0 {
					s.Clear(id)
				}
			}
		}(i)
	}
	wg.Wait()
}
