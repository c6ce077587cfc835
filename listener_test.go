package main

import (
	"context"
	"errors"
	"testing"
)

type sliceReceiver struct {
	msgs []InboundMessage
	err  error
}

func (r *sliceReceiver) Receive(ctx context.Context, fn func(InboundMessage) error) error {
	for _, m := range r.msgs {
		if err := fn(m); err != nil {
			return err
		}
	}
	return r.err
}

const testChatID = "-1001"

func listen(t *testing.T, msgs ...InboundMessage) []Event {
	t.Helper()
	bus := NewBus(len(msgs) + 1)
	l := NewChatListener(&sliceReceiver{msgs: msgs}, bus, testChatID, "/", testLogger())
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("listener: %v", err)
	}
	return drain(bus)
}

func TestChatListener_Conversions(t *testing.T) {
	tests := []struct {
		name string
		msg  InboundMessage
		want Event
	}{
		{
			name: "text",
			msg:  InboundMessage{ChatID: testChatID, MessageID: "7", Sender: "Alice", Text: "hello"},
			want: ChatMessage{Text: "Alice: hello"},
		},
		{
			name: "command",
			msg:  InboundMessage{ChatID: testChatID, MessageID: "42", Sender: "Bob", Text: "/give diamond"},
			want: ChatCommand{ReplyTo: "42", Command: "/give diamond"},
		},
		{
			name: "photo",
			msg:  InboundMessage{ChatID: testChatID, MessageID: "8", Sender: "Alice", HasAttachment: true},
			want: ChatMessage{Text: "Alice: [IMG]"},
		},
		{
			name: "attachment with text",
			msg:  InboundMessage{ChatID: testChatID, MessageID: "9", Sender: "Alice", Text: "look", HasAttachment: true},
			want: ChatMessage{Text: "Alice: look"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := listen(t, tt.msg)
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("expected [%+v], got %v", tt.want, got)
			}
		})
	}
}

func TestChatListener_Discards(t *testing.T) {
	got := listen(t,
		InboundMessage{ChatID: "999", MessageID: "1", Sender: "Mallory", Text: "hi"},
		InboundMessage{ChatID: testChatID, MessageID: "2", Sender: "", Text: "anonymous"},
		InboundMessage{ChatID: testChatID, MessageID: "3", Sender: "Alice"},
		InboundMessage{ChatID: testChatID, MessageID: "4", Sender: "Alice", Text: "kept"},
	)
	if len(got) != 1 || got[0] != (ChatMessage{Text: "Alice: kept"}) {
		t.Fatalf("expected only the last message, got %v", got)
	}
}

func TestChatListener_CustomPrefix(t *testing.T) {
	bus := NewBus(4)
	msgs := []InboundMessage{
		{ChatID: testChatID, MessageID: "1", Sender: "Alice", Text: "!players"},
		{ChatID: testChatID, MessageID: "2", Sender: "Alice", Text: "/not-a-command"},
	}
	l := NewChatListener(&sliceReceiver{msgs: msgs}, bus, testChatID, "!", testLogger())
	if err := l.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := drain(bus)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %v", got)
	}
	if got[0] != (ChatCommand{ReplyTo: "1", Command: "!players"}) {
		t.Errorf("unexpected command %+v", got[0])
	}
	if got[1] != (ChatMessage{Text: "Alice: /not-a-command"}) {
		t.Errorf("unexpected message %+v", got[1])
	}
}

func TestChatListener_StreamFailureIsFatal(t *testing.T) {
	streamErr := errors.New("long poll failed")
	l := NewChatListener(&sliceReceiver{err: streamErr}, NewBus(1), testChatID, "/", testLogger())

	if err := l.Run(context.Background()); !errors.Is(err, streamErr) {
		t.Fatalf("expected wrapped stream error, got %v", err)
	}
}

func TestChatListener_ClosedBusEndsRun(t *testing.T) {
	bus := NewBus(1)
	bus.Close()
	msgs := []InboundMessage{{ChatID: testChatID, MessageID: "1", Sender: "Alice", Text: "hi"}}
	l := NewChatListener(&sliceReceiver{msgs: msgs}, bus, testChatID, "/", testLogger())

	if err := l.Run(context.Background()); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
}

// Chat command in, console command out, reply threaded under the original.
func TestChatListener_CommandEndToEnd(t *testing.T) {
	bus := NewBus(4)
	msgs := []InboundMessage{
		{ChatID: testChatID, MessageID: "42", Sender: "Bob", Text: "/give diamond"},
		{ChatID: testChatID, MessageID: "43", Sender: "Alice", Text: "hello"},
	}
	l := NewChatListener(&sliceReceiver{msgs: msgs}, bus, testChatID, "/", testLogger())
	if err := l.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	bus.Close()

	chat := &fakeChat{}
	console := &fakeConsole{reply: func(cmd string) (string, error) { return "ok: " + cmd, nil }}
	if err := NewRouter(bus.Events(), chat, console, testRecorder(t, bus), testLogger()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	cmds := console.executed()
	if len(cmds) != 2 || cmds[0] != "/give diamond" || cmds[1] != "Alice: hello" {
		t.Fatalf("unexpected console commands %v", cmds)
	}
	replies := chat.messages()
	if len(replies) != 1 || replies[0] != (sentMessage{Text: "ok: /give diamond", ReplyTo: "42"}) {
		t.Fatalf("unexpected replies %v", replies)
	}
}
