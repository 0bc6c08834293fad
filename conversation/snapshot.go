package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedSnapshot marks a snapshot that exists but cannot be decoded
// or fails validation. Callers may fall back to a fresh conversation, but
// the fallback is silent data loss and must be logged, never defaulted.
var ErrMalformedSnapshot = errors.New("malformed conversation snapshot")

// SnapshotStore persists the full conversation after every turn and loads
// it once at session start.
//
// Load returns a fresh empty conversation when no snapshot exists yet;
// a snapshot that exists but cannot be decoded returns
// ErrMalformedSnapshot. Save overwrites the previous snapshot.
type SnapshotStore interface {
	Load(ctx context.Context) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Close() error
}

// Snapshot document shape. Field names are part of the on-disk contract.

type snapshotMessage struct {
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp int64     `json:"timestamp"`
	Vector    []float32 `json:"vector"`
	UUID      string    `json:"uuid"`
}

type snapshotNote struct {
	NoteText     string    `json:"note_text"`
	Timestamp    int64     `json:"timestamp"`
	SourceUUIDs  []string  `json:"source_uuids,omitempty"`
	SourceVector []float32 `json:"source_vector,omitempty"`
}

type snapshotDoc struct {
	Messages []snapshotMessage `json:"messages"`
	Notes    []snapshotNote    `json:"notes"`
}

// EncodeSnapshot serializes the conversation to the snapshot document.
func EncodeSnapshot(conv *Conversation) ([]byte, error) {
	doc := snapshotDoc{
		Messages: make([]snapshotMessage, 0, len(conv.messages)),
		Notes:    make([]snapshotNote, 0, len(conv.notes)),
	}
	for _, m := range conv.messages {
		doc.Messages = append(doc.Messages, snapshotMessage{
			Message:   m.text,
			Author:    m.author,
			Timestamp: m.timestamp,
			Vector:    m.vector,
			UUID:      m.id,
		})
	}
	for _, n := range conv.notes {
		doc.Notes = append(doc.Notes, snapshotNote{
			NoteText:     n.text,
			Timestamp:    n.timestamp,
			SourceUUIDs:  n.sourceIDs,
			SourceVector: n.sourceVector,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot rebuilds a conversation from a snapshot document.
// Any decode or validation failure is reported as ErrMalformedSnapshot.
func DecodeSnapshot(data []byte) (*Conversation, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	conv := New()
	seen := make(map[string]struct{}, len(doc.Messages))
	for i, sm := range doc.Messages {
		if sm.UUID == "" {
			return nil, fmt.Errorf("%w: message %d has no uuid", ErrMalformedSnapshot, i)
		}
		if _, dup := seen[sm.UUID]; dup {
			return nil, fmt.Errorf("%w: duplicate message uuid %s", ErrMalformedSnapshot, sm.UUID)
		}
		seen[sm.UUID] = struct{}{}

		msg := NewMessageFromSnapshot(sm.UUID, sm.Author, sm.Message, sm.Timestamp, sm.Vector)
		if err := conv.AddMessage(msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
		}
	}
	for _, sn := range doc.Notes {
		conv.AddNote(NewNoteFromSnapshot(sn.NoteText, sn.Timestamp, sn.SourceUUIDs, sn.SourceVector))
	}
	return conv, nil
}
