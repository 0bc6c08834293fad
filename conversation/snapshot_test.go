package conversation_test

import (
	"errors"
	"testing"

	"github.com/becomeliminal/recall/conversation"
)

func buildConversation(t *testing.T) *conversation.Conversation {
	t.Helper()
	conv := conversation.New()
	msgs := []*conversation.Message{
		conversation.NewMessageFromSnapshot("id-1", "USER", "hello", 1700000000001, []float32{0.1, 0.2, 0.3}),
		conversation.NewMessageFromSnapshot("id-2", "RECALL", "hi there", 1700000000500, []float32{0.4, 0.5, 0.6}),
		conversation.NewMessageFromSnapshot("id-3", "USER", "how are you?", 1700000001000, []float32{0.7, 0.8, 0.9}),
	}
	for _, m := range msgs {
		if err := conv.AddMessage(m); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}
	conv.AddNote(conversation.NewNoteFromSnapshot("user said hello", 1700000000600, nil, nil))
	conv.AddNote(conversation.NewNoteFromSnapshot("summary of block", 1700000000700,
		[]string{"id-1", "id-2"}, []float32{0.2, 0.3, 0.4}))
	return conv
}

func TestSnapshot_RoundTrip(t *testing.T) {
	conv := buildConversation(t)

	data, err := conversation.EncodeSnapshot(conv)
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}
	back, err := conversation.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}

	if back.Len() != conv.Len() {
		t.Fatalf("got %d messages after round trip, want %d", back.Len(), conv.Len())
	}
	for i, orig := range conv.Messages() {
		got := back.Messages()[i]
		if got.ID() != orig.ID() || got.Author() != orig.Author() ||
			got.Text() != orig.Text() || got.Timestamp() != orig.Timestamp() {
			t.Errorf("message %d fields changed in round trip", i)
		}
		if len(got.Vector()) != len(orig.Vector()) {
			t.Fatalf("message %d vector length changed", i)
		}
		for j := range orig.Vector() {
			if got.Vector()[j] != orig.Vector()[j] {
				t.Errorf("message %d vector[%d] = %v, want %v", i, j, got.Vector()[j], orig.Vector()[j])
			}
		}
	}

	if len(back.Notes()) != len(conv.Notes()) {
		t.Fatalf("got %d notes after round trip, want %d", len(back.Notes()), len(conv.Notes()))
	}
	for i, orig := range conv.Notes() {
		got := back.Notes()[i]
		if got.Text() != orig.Text() || got.Timestamp() != orig.Timestamp() {
			t.Errorf("note %d fields changed in round trip", i)
		}
		if len(got.SourceIDs()) != len(orig.SourceIDs()) {
			t.Errorf("note %d provenance changed in round trip", i)
		}
	}
}

func TestSnapshot_ReEncodeIsStable(t *testing.T) {
	conv := buildConversation(t)

	first, err := conversation.EncodeSnapshot(conv)
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}
	back, err := conversation.DecodeSnapshot(first)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	second, err := conversation.EncodeSnapshot(back)
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	if string(first) != string(second) {
		t.Error("load(save(conv)) re-encoded to a different document")
	}
}

func TestDecodeSnapshot_MalformedJSON(t *testing.T) {
	_, err := conversation.DecodeSnapshot([]byte("{not json"))
	if !errors.Is(err, conversation.ErrMalformedSnapshot) {
		t.Errorf("got %v, want ErrMalformedSnapshot", err)
	}
}

func TestDecodeSnapshot_DuplicateUUID(t *testing.T) {
	doc := `{"messages":[
		{"message":"a","author":"USER","timestamp":1,"vector":[1],"uuid":"x"},
		{"message":"b","author":"USER","timestamp":2,"vector":[1],"uuid":"x"}
	],"notes":[]}`
	_, err := conversation.DecodeSnapshot([]byte(doc))
	if !errors.Is(err, conversation.ErrMalformedSnapshot) {
		t.Errorf("got %v, want ErrMalformedSnapshot for duplicate uuid", err)
	}
}

func TestDecodeSnapshot_MissingUUID(t *testing.T) {
	doc := `{"messages":[{"message":"a","author":"USER","timestamp":1,"vector":[1],"uuid":""}],"notes":[]}`
	_, err := conversation.DecodeSnapshot([]byte(doc))
	if !errors.Is(err, conversation.ErrMalformedSnapshot) {
		t.Errorf("got %v, want ErrMalformedSnapshot for missing uuid", err)
	}
}
