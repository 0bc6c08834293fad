package conversation

import (
	"fmt"
	"strings"

	"github.com/becomeliminal/recall/similarity"
)

// NoteDelimiter is the single convention for joining note texts into a
// block and splitting a completion back into notes. Producer and consumer
// must agree on it or compression silently merges or fabricates notes.
const NoteDelimiter = "\n- "

// EmptyNotesPlaceholder is rendered into prompts when no notes exist yet.
const EmptyNotesPlaceholder = "No notes on this conversation so far."

// Conversation is the aggregate root: an ordered message log plus the
// current set of notes. Insertion order is chronological order and the
// only ordering guarantee. Not safe for concurrent use; the session loop
// is the single writer.
type Conversation struct {
	messages []*Message
	notes    []*Note
}

// New returns an empty conversation.
func New() *Conversation {
	return &Conversation{}
}

// AddMessage appends to the end of the log. The timestamp is clamped so
// the sequence stays monotonically non-decreasing even if the wall clock
// steps backwards. Returns an error only on a contract violation: a
// vector whose dimensionality differs from the messages already stored.
func (c *Conversation) AddMessage(m *Message) error {
	if len(c.messages) > 0 {
		last := c.messages[len(c.messages)-1]
		if len(m.vector) != len(last.vector) {
			return fmt.Errorf("conversation: vector dimension %d does not match existing %d",
				len(m.vector), len(last.vector))
		}
		if m.timestamp < last.timestamp {
			m.timestamp = last.timestamp
		}
	}
	c.messages = append(c.messages, m)
	return nil
}

// Messages returns the full log in chronological order.
func (c *Conversation) Messages() []*Message { return c.messages }

// Len returns the number of stored messages.
func (c *Conversation) Len() int { return len(c.messages) }

// LastMessages returns the last n messages in chronological order, or all
// of them when fewer exist. n <= 0 returns nil.
func (c *Conversation) LastMessages(n int) []*Message {
	if n <= 0 {
		return nil
	}
	if n > len(c.messages) {
		n = len(c.messages)
	}
	return c.messages[len(c.messages)-n:]
}

// Recent renders the last n messages as a single text block: each
// message's display form, joined by blank lines, outer whitespace
// trimmed. Under-supply is not an error.
func (c *Conversation) Recent(n int) string {
	msgs := c.LastMessages(n)
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.String())
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// Related returns up to limit stored messages ranked by cosine similarity
// to query, most related first. Messages whose id is in exclude are
// skipped, as is any message whose vector is bit-identical to the query,
// so the triggering message never matches itself at similarity 1.0 even
// through a stale exclusion set.
func (c *Conversation) Related(query []float32, exclude map[string]struct{}, limit int) ([]*Message, error) {
	var (
		vectors [][]float32
		owners  []*Message
	)
	for _, m := range c.messages {
		if _, skip := exclude[m.id]; skip {
			continue
		}
		if vectorsEqual(m.vector, query) {
			continue
		}
		vectors = append(vectors, m.vector)
		owners = append(owners, m)
	}

	ranked, err := similarity.Rank(query, vectors, limit)
	if err != nil {
		return nil, fmt.Errorf("rank related messages: %w", err)
	}

	related := make([]*Message, 0, len(ranked))
	for _, r := range ranked {
		related = append(related, owners[r.Index])
	}
	return related, nil
}

// Notes returns the current note set in insertion order.
func (c *Conversation) Notes() []*Note { return c.notes }

// AddNote appends a note.
func (c *Conversation) AddNote(n *Note) {
	c.notes = append(c.notes, n)
}

// SetNotes replaces the whole note collection. Used by compression, which
// discards the old set rather than mutating it.
func (c *Conversation) SetNotes(notes []*Note) {
	c.notes = notes
}

// NotesBlock renders the notes for prompt injection: texts joined by the
// note delimiter, or the fixed placeholder when none exist.
func (c *Conversation) NotesBlock() string {
	if len(c.notes) == 0 {
		return EmptyNotesPlaceholder
	}
	texts := make([]string, 0, len(c.notes))
	for _, n := range c.notes {
		texts = append(texts, n.text)
	}
	return JoinNoteTexts(texts)
}

// JoinNoteTexts concatenates note texts with the shared delimiter.
func JoinNoteTexts(texts []string) string {
	return strings.Join(texts, NoteDelimiter)
}

// SplitNoteTexts is the inverse of JoinNoteTexts for completion output:
// split on the delimiter, strip any leading bullet and surrounding
// whitespace from each fragment, drop empties.
func SplitNoteTexts(block string) []string {
	var out []string
	for _, frag := range strings.Split(block, NoteDelimiter) {
		frag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(frag), "- "))
		if frag != "" {
			out = append(out, frag)
		}
	}
	return out
}

// vectorsEqual reports bit-identical float32 equality.
func vectorsEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
