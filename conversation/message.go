package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// displayTimeFormat renders timestamps the way messages quote them in
// prompts, e.g. "Monday, January 2, 2006 at 3:04PM".
const displayTimeFormat = "Monday, January 2, 2006 at 3:04PM"

// Message is one turn of dialogue. It is immutable once created: the
// embedding is computed exactly once at creation and the id never changes.
type Message struct {
	id        string
	author    string
	text      string
	timestamp int64 // Unix milliseconds
	vector    []float32
}

// NewMessage creates a Message with a fresh id and the current time.
// The vector must come from the session's embedding provider; it is
// stored as-is and never recomputed.
func NewMessage(author, text string, vector []float32) *Message {
	return &Message{
		id:        uuid.New().String(),
		author:    author,
		text:      text,
		timestamp: time.Now().UnixMilli(),
		vector:    vector,
	}
}

// NewMessageFromSnapshot rebuilds a Message from persisted fields.
// Used by snapshot decoding; callers must not invent ids.
func NewMessageFromSnapshot(id, author, text string, timestamp int64, vector []float32) *Message {
	return &Message{
		id:        id,
		author:    author,
		text:      text,
		timestamp: timestamp,
		vector:    vector,
	}
}

func (m *Message) ID() string       { return m.id }
func (m *Message) Author() string   { return m.author }
func (m *Message) Text() string     { return m.text }
func (m *Message) Timestamp() int64 { return m.timestamp }

// Vector returns the embedding computed at creation.
func (m *Message) Vector() []float32 { return m.vector }

// String is the display form used in prompt blocks.
func (m *Message) String() string {
	ts := time.UnixMilli(m.timestamp).Format(displayTimeFormat)
	return fmt.Sprintf("%s at %s: %s", m.author, ts, m.text)
}

// Note is a compact textual summary distilled from the dialogue. Notes
// are replaced wholesale on compression, never edited in place.
type Note struct {
	text      string
	timestamp int64 // Unix milliseconds

	// Provenance, set only for notes derived from a specific message
	// block. Omitted from snapshots when empty.
	sourceIDs    []string
	sourceVector []float32
}

// NewNote creates a Note with the current time and no provenance.
func NewNote(text string) *Note {
	return &Note{
		text:      text,
		timestamp: time.Now().UnixMilli(),
	}
}

// NewDerivedNote creates a Note that records which messages it condenses
// and the embedding of the source block.
func NewDerivedNote(text string, sourceIDs []string, sourceVector []float32) *Note {
	n := NewNote(text)
	n.sourceIDs = sourceIDs
	n.sourceVector = sourceVector
	return n
}

// NewNoteFromSnapshot rebuilds a Note from persisted fields.
func NewNoteFromSnapshot(text string, timestamp int64, sourceIDs []string, sourceVector []float32) *Note {
	return &Note{
		text:         text,
		timestamp:    timestamp,
		sourceIDs:    sourceIDs,
		sourceVector: sourceVector,
	}
}

func (n *Note) Text() string            { return n.text }
func (n *Note) Timestamp() int64        { return n.timestamp }
func (n *Note) SourceIDs() []string     { return n.sourceIDs }
func (n *Note) SourceVector() []float32 { return n.sourceVector }

func (n *Note) String() string {
	ts := time.UnixMilli(n.timestamp).Format(displayTimeFormat)
	return fmt.Sprintf("Note at %s: %s", ts, n.text)
}
