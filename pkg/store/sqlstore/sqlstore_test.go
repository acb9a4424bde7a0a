package sqlstore

import (
	"context"
	"testing"

	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestOpenRejectsUnknownDSN(t *testing.T) {
	if _, err := Open("mysql://nope"); err == nil {
		t.Fatal("unrecognized DSN must fail")
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	th, err := s.Create(ctx, thread.UserInput("what is 2 + 2?"))
	if err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Get(ctx, th.ID)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.Len() != 1 {
		t.Fatalf("len=%d want 1", got.Len())
	}
	if got.Events[0].Kind != thread.KindUserInput || got.Events[0].Data != "what is 2 + 2?" {
		t.Fatalf("event: %+v", got.Events[0])
	}
}

func TestGetUnknownThread(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("missing thread must report ok=false")
	}
}

func TestSaveAppendsOnly(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	th, err := s.Create(ctx, thread.UserInput("hi"))
	if err != nil {
		t.Fatal(err)
	}
	th.Append(thread.Event{Kind: thread.KindSystemResponse, Data: "hello"})
	if err := s.Save(ctx, th); err != nil {
		t.Fatal(err)
	}
	// Saving again with no new events is a no-op.
	if err := s.Save(ctx, th); err != nil {
		t.Fatal(err)
	}

	got, _, err := s.Get(ctx, th.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 {
		t.Fatalf("len=%d want 2", got.Len())
	}
	if got.Events[1].Data != "hello" {
		t.Fatalf("event data: %v", got.Events[1].Data)
	}
}

func TestSaveRejectsTruncation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	th, err := s.Create(ctx, thread.UserInput("hi"),
		thread.Event{Kind: thread.KindSystemResponse, Data: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	short := &thread.Thread{ID: th.ID, Events: th.Events[:1]}
	err = s.Save(ctx, short)
	if err == nil {
		t.Fatal("truncating save must fail")
	}
	if errmodel.From(err).Code != "conflict" {
		t.Fatalf("code=%s want conflict", errmodel.From(err).Code)
	}
}

func TestSaveRejectsUnknownThread(t *testing.T) {
	s := openTestStore(t)
	err := s.Save(context.Background(), thread.New())
	if err == nil {
		t.Fatal("saving unknown thread must fail")
	}
	if errmodel.From(err).Code != "not_found" {
		t.Fatalf("code=%s want not_found", errmodel.From(err).Code)
	}
}

func TestStructuredEventDataSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	th, err := s.Create(ctx, thread.UserInput("divide"))
	if err != nil {
		t.Fatal(err)
	}
	th.Append(thread.Event{Kind: thread.KindToolCall, Data: map[string]any{
		"intent": "divide", "a": 8.0, "b": 2.0,
	}})
	th.Append(thread.Event{Kind: thread.KindToolResponse, Data: 4.0})
	if err := s.Save(ctx, th); err != nil {
		t.Fatal(err)
	}

	got, _, err := s.Get(ctx, th.ID)
	if err != nil {
		t.Fatal(err)
	}
	call := got.Events[1].Data.(map[string]any)
	if call["intent"] != "divide" || call["a"] != 8.0 {
		t.Fatalf("tool call data: %v", call)
	}
	if got.Events[2].Data.(float64) != 4.0 {
		t.Fatalf("tool response data: %v", got.Events[2].Data)
	}
}
