package session

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/becomeliminal/recall/conversation"
	"github.com/becomeliminal/recall/prompt"
	"github.com/becomeliminal/recall/provider"
)

// NoteCompressor keeps the note collection bounded: once the count
// exceeds the threshold, all notes are joined into one block, rewritten
// by the completion provider, and the collection is replaced with the
// smaller set.
//
// Compression is best effort. On provider failure the existing notes are
// left untouched and the next turn retries.
type NoteCompressor struct {
	completer provider.Completer
	prompts   *prompt.Loader
	threshold int
	options   provider.Options
}

// NewNoteCompressor builds a compressor. threshold <= 0 falls back to
// the default policy of 10.
func NewNoteCompressor(completer provider.Completer, prompts *prompt.Loader, threshold int, options provider.Options) *NoteCompressor {
	if threshold <= 0 {
		threshold = DefaultConfig.CompressThreshold
	}
	return &NoteCompressor{
		completer: completer,
		prompts:   prompts,
		threshold: threshold,
		options:   options,
	}
}

// Compress replaces the conversation's notes with a condensed set when
// the count exceeds the threshold. It reports whether a replacement
// happened. The note set is only ever replaced with a non-empty result;
// every failure path leaves it exactly as it was.
func (c *NoteCompressor) Compress(ctx context.Context, conv *conversation.Conversation) (bool, error) {
	notes := conv.Notes()
	if len(notes) <= c.threshold {
		return false, nil
	}

	texts := make([]string, 0, len(notes))
	for _, n := range notes {
		texts = append(texts, n.Text())
	}
	block := conversation.JoinNoteTexts(texts)
	if strings.TrimSpace(block) == "" {
		// Nothing to summarize; a provider call would be wasted.
		log.Printf("[NOTES] compression skipped: note block is empty")
		return false, nil
	}

	tmpl, err := c.prompts.Load(prompt.CompressNotes)
	if err != nil {
		return false, err
	}

	log.Printf("[NOTES] compressing %d notes (threshold %d)", len(notes), c.threshold)
	out, err := c.completer.Complete(ctx, prompt.Render(tmpl, map[string]string{"NOTES": block}), c.options)
	if err != nil {
		return false, fmt.Errorf("compress notes: %w", err)
	}

	fragments := conversation.SplitNoteTexts(out)
	if len(fragments) == 0 {
		return false, fmt.Errorf("compress notes: provider returned no usable fragments")
	}

	replacement := make([]*conversation.Note, 0, len(fragments))
	for _, frag := range fragments {
		replacement = append(replacement, conversation.NewNote(frag))
	}
	conv.SetNotes(replacement)
	log.Printf("[NOTES] compressed to %d notes", len(replacement))
	return true, nil
}
