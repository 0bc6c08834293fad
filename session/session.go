// Package session drives the conversational turn loop: ingest the user's
// message, gather chronological and semantic context, obtain a response,
// record it, distill notes, and persist the conversation snapshot.
//
// The loop is strictly turn-sequential and single-writer. Only provider
// calls block; conversation state is mutated between them and must be
// consistent when the next call reads it, so nothing runs concurrently
// within a turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/becomeliminal/recall/conversation"
	"github.com/becomeliminal/recall/prompt"
	"github.com/becomeliminal/recall/provider"
)

// Config tunes the turn loop. Zero values fall back to DefaultConfig
// field by field, so a literal zero cannot be configured for the int
// fields; use a negative value where one has meaning (GroundedThreshold)
// and treat the defaults as floors elsewhere.
type Config struct {
	// UserName and BotName label the two speakers in prompts and stop
	// sequences.
	UserName string
	BotName  string

	// RecentWindow is how many trailing messages feed the prompt.
	RecentWindow int

	// RelatedLimit caps similarity retrieval per turn.
	RelatedLimit int

	// GroundedThreshold selects the grounded response template once the
	// related-message count exceeds it. Kept separate from
	// CompressThreshold: the two are unrelated knobs even though they
	// share a default. Negative means the grounded template is always
	// used.
	GroundedThreshold int

	// CompressThreshold triggers note compression once the note count
	// exceeds it.
	CompressThreshold int

	// MaxTokens bounds each completion.
	MaxTokens int64

	// Retry bounds provider reattempts for both embeddings and
	// completions.
	Retry provider.RetryPolicy
}

// DefaultConfig mirrors the reference policy.
var DefaultConfig = &Config{
	UserName:          "USER",
	BotName:           "RECALL",
	RecentWindow:      12,
	RelatedLimit:      6,
	GroundedThreshold: 10,
	CompressThreshold: 10,
	MaxTokens:         400,
	Retry:             provider.DefaultRetryPolicy,
}

// Session owns one conversation and runs turns against it.
type Session struct {
	embedder  provider.Embedder
	completer provider.Completer
	store     conversation.SnapshotStore
	prompts   *prompt.Loader
	config    *Config

	conv       *conversation.Conversation
	compressor *NoteCompressor
}

// Option configures the session.
type Option func(*Session)

// WithPrompts sets a custom template loader.
func WithPrompts(l *prompt.Loader) Option {
	return func(s *Session) { s.prompts = l }
}

// WithConfig sets the session configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Session) { s.config = cfg }
}

// New loads the conversation from the store and builds a session around
// it. A malformed snapshot does not abort the session: it falls back to
// a fresh conversation, loudly, because the fallback drops history.
func New(ctx context.Context, embedder provider.Embedder, completer provider.Completer, store conversation.SnapshotStore, opts ...Option) (*Session, error) {
	s := &Session{
		embedder:  embedder,
		completer: completer,
		store:     store,
		prompts:   prompt.NewLoader(""),
		config:    DefaultConfig,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.config = mergedConfig(s.config)

	s.embedder = provider.NewRetryingEmbedder(s.embedder, s.config.Retry)
	s.completer = provider.NewRetryingCompleter(s.completer, s.config.Retry)
	s.compressor = NewNoteCompressor(s.completer, s.prompts, s.config.CompressThreshold, s.completionOptions())

	conv, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, conversation.ErrMalformedSnapshot) {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		log.Printf("[SESSION] WARNING: snapshot is malformed, starting a fresh conversation (history lost): %v", err)
		conv = conversation.New()
	}
	s.conv = conv
	log.Printf("[SESSION] loaded conversation: %d messages, %d notes", conv.Len(), len(conv.Notes()))
	return s, nil
}

// Conversation exposes the session's aggregate, e.g. for inspection or
// seeding in tests. The session remains the single writer.
func (s *Session) Conversation() *conversation.Conversation { return s.conv }

// BotName returns the configured bot speaker label.
func (s *Session) BotName() string { return s.config.BotName }

// Turn reports what one completed turn did.
type Turn struct {
	// UserMessage is the recorded input message.
	UserMessage *conversation.Message

	// Response is the bot's reply text.
	Response string

	// BotMessage is the recorded reply message.
	BotMessage *conversation.Message

	// Grounded reports whether the grounded template was selected.
	Grounded bool

	// RelatedCount is how many related messages fed the prompt.
	RelatedCount int

	// NotesAdded is how many fresh notes this turn produced.
	NotesAdded int

	// Compressed reports whether note compression ran and replaced the
	// note set.
	Compressed bool
}

// RunTurn executes one full turn for the given user input.
//
// A terminal provider failure aborts the turn with an error and records
// no bot message: an error string must never be persisted and embedded
// as if it were a real answer. The user's message, once embedded, stays,
// and the snapshot is saved before returning so state on disk matches
// state in memory.
func (s *Session) RunTurn(ctx context.Context, userText string) (*Turn, error) {
	cfg := s.config

	// AwaitingInput: embed and record the user's message.
	userVec, err := s.embedder.Embed(ctx, userText)
	if err != nil {
		return nil, fmt.Errorf("embed user message: %w", err)
	}
	userMsg := conversation.NewMessage(cfg.UserName, userText, userVec)
	if err := s.conv.AddMessage(userMsg); err != nil {
		return nil, fmt.Errorf("record user message: %w", err)
	}

	// GatheringContext: chronological window, notes, semantic neighbors.
	recent := s.conv.Recent(cfg.RecentWindow)
	notesBlock := s.conv.NotesBlock()
	related, err := s.conv.Related(userVec, map[string]struct{}{userMsg.ID(): {}}, cfg.RelatedLimit)
	if err != nil {
		return nil, fmt.Errorf("retrieve related messages: %w", err)
	}
	log.Printf("[SESSION] context: %d related messages, %d notes", len(related), len(s.conv.Notes()))

	// Responding: pick a template by context richness and complete.
	grounded := len(related) > cfg.GroundedThreshold
	answer, err := s.respond(ctx, recent, notesBlock, related, grounded)
	if err != nil {
		s.saveSnapshot(ctx)
		return nil, fmt.Errorf("generate response: %w", err)
	}

	// Recording: embed and append the reply, then distill fresh notes.
	answerVec, err := s.embedder.Embed(ctx, answer)
	if err != nil {
		s.saveSnapshot(ctx)
		return nil, fmt.Errorf("embed response: %w", err)
	}
	botMsg := conversation.NewMessage(cfg.BotName, answer, answerVec)
	if err := s.conv.AddMessage(botMsg); err != nil {
		return nil, fmt.Errorf("record response: %w", err)
	}

	notesAdded := s.distillNotes(ctx, recent)

	compressed, err := s.compressor.Compress(ctx, s.conv)
	if err != nil {
		// Best effort: the old notes are intact, the turn still counts.
		log.Printf("[NOTES] compression abandoned, keeping %d notes: %v", len(s.conv.Notes()), err)
	}

	if err := s.store.Save(ctx, s.conv); err != nil {
		return nil, fmt.Errorf("persist conversation: %w", err)
	}

	return &Turn{
		UserMessage:  userMsg,
		Response:     answer,
		BotMessage:   botMsg,
		Grounded:     grounded,
		RelatedCount: len(related),
		NotesAdded:   notesAdded,
		Compressed:   compressed,
	}, nil
}

// respond renders the selected template and completes it.
func (s *Session) respond(ctx context.Context, recent, notesBlock string, related []*conversation.Message, grounded bool) (string, error) {
	name := prompt.ResponseCold
	vars := map[string]string{
		"BOT":          s.config.BotName,
		"CONVERSATION": recent,
	}
	if grounded {
		name = prompt.Response
		lines := make([]string, 0, len(related))
		for _, m := range related {
			lines = append(lines, m.String())
		}
		vars["NOTES"] = notesBlock
		vars["RELATED"] = strings.Join(lines, "\n")
	}

	tmpl, err := s.prompts.Load(name)
	if err != nil {
		return "", err
	}
	log.Printf("[SESSION] responding with %q template", name)
	return s.completer.Complete(ctx, prompt.Render(tmpl, vars), s.completionOptions())
}

// distillNotes generates this turn's notes from the recent block and
// appends them. Note generation is best effort: a terminal provider
// failure skips it without failing the turn.
func (s *Session) distillNotes(ctx context.Context, recent string) int {
	tmpl, err := s.prompts.Load(prompt.Notes)
	if err != nil {
		log.Printf("[NOTES] skipping note distillation: %v", err)
		return 0
	}

	out, err := s.completer.Complete(ctx, prompt.Render(tmpl, map[string]string{"INPUT": recent}), s.completionOptions())
	if err != nil {
		log.Printf("[NOTES] skipping note distillation: %v", err)
		return 0
	}

	texts := conversation.SplitNoteTexts(out)
	for _, txt := range texts {
		s.conv.AddNote(conversation.NewNote(txt))
	}
	log.Printf("[NOTES] distilled %d notes this turn", len(texts))
	return len(texts)
}

// SummarizeMessages condenses a block of messages into a single
// provenance-carrying note: the note remembers which messages it came
// from and the embedding of the source block. The caller decides whether
// to add it to the conversation.
func (s *Session) SummarizeMessages(ctx context.Context, msgs []*conversation.Message) (*conversation.Note, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("summarize: no messages")
	}

	ordered := make([]*conversation.Message, len(msgs))
	copy(ordered, msgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp() < ordered[j].Timestamp()
	})

	var (
		parts []string
		ids   []string
	)
	for _, m := range ordered {
		parts = append(parts, m.Text())
		ids = append(ids, m.ID())
	}
	block := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if block == "" {
		return nil, fmt.Errorf("summarize: empty message block")
	}

	tmpl, err := s.prompts.Load(prompt.Notes)
	if err != nil {
		return nil, err
	}
	summary, err := s.completer.Complete(ctx, prompt.Render(tmpl, map[string]string{"INPUT": block}), s.completionOptions())
	if err != nil {
		return nil, fmt.Errorf("summarize block: %w", err)
	}

	blockVec, err := s.embedder.Embed(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("embed block: %w", err)
	}
	return conversation.NewDerivedNote(summary, ids, blockVec), nil
}

// saveSnapshot persists current state on an abort path, where the turn
// error matters more than a secondary save error.
func (s *Session) saveSnapshot(ctx context.Context) {
	if err := s.store.Save(ctx, s.conv); err != nil {
		log.Printf("[SESSION] failed to persist snapshot: %v", err)
	}
}

func (s *Session) completionOptions() provider.Options {
	opts := provider.DefaultOptions(s.config.UserName+":", s.config.BotName+":")
	opts.MaxTokens = s.config.MaxTokens
	return opts
}

// mergedConfig fills zero fields from DefaultConfig.
func mergedConfig(cfg *Config) *Config {
	if cfg == nil {
		c := *DefaultConfig
		return &c
	}
	out := *cfg
	if out.UserName == "" {
		out.UserName = DefaultConfig.UserName
	}
	if out.BotName == "" {
		out.BotName = DefaultConfig.BotName
	}
	if out.RecentWindow == 0 {
		out.RecentWindow = DefaultConfig.RecentWindow
	}
	if out.RelatedLimit == 0 {
		out.RelatedLimit = DefaultConfig.RelatedLimit
	}
	if out.GroundedThreshold == 0 {
		out.GroundedThreshold = DefaultConfig.GroundedThreshold
	}
	if out.CompressThreshold == 0 {
		out.CompressThreshold = DefaultConfig.CompressThreshold
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = DefaultConfig.MaxTokens
	}
	if out.Retry.MaxAttempts == 0 {
		out.Retry = DefaultConfig.Retry
	}
	return &out
}
