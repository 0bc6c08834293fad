// Command recall is an interactive terminal chat backed by the memory
// session: every turn is embedded, retrieved against, noted, and
// snapshotted to disk, so the conversation survives restarts.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/becomeliminal/recall/conversation"
	"github.com/becomeliminal/recall/conversation/store/bolt"
	"github.com/becomeliminal/recall/conversation/store/file"
	"github.com/becomeliminal/recall/provider"
	"github.com/becomeliminal/recall/provider/embedder/chromem"
	"github.com/becomeliminal/recall/provider/embedder/mock"
	"github.com/becomeliminal/recall/session"
)

func main() {
	_ = godotenv.Load()

	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	if anthropicKey == "" {
		log.Fatal("ANTHROPIC_API_KEY environment variable is required")
	}

	embedder, err := buildEmbedder()
	if err != nil {
		log.Fatal(err)
	}

	store, err := buildStore()
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	completer := provider.NewAnthropicCompleter(provider.AnthropicConfig{
		APIKey: anthropicKey,
		Model:  os.Getenv("ANTHROPIC_MODEL"),
	})

	ctx := context.Background()
	s, err := session.New(ctx, embedder, completer, store)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Loaded %d messages and %d notes. Type your message, or /quit to exit.\n",
		s.Conversation().Len(), len(s.Conversation().Notes()))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}
		if line == "/notes" {
			fmt.Println(s.Conversation().NotesBlock())
			continue
		}

		turn, err := s.RunTurn(ctx, line)
		if err != nil {
			log.Printf("turn failed: %v", err)
			continue
		}
		fmt.Printf("%s> %s\n", strings.ToLower(s.BotName()), turn.Response)
	}

	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}

// buildEmbedder picks the embedding backend from EMBEDDER: "openai",
// "ollama", or the default deterministic local hasher. The hasher needs
// no credentials and keeps retrieval usable offline.
func buildEmbedder() (provider.Embedder, error) {
	switch os.Getenv("EMBEDDER") {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("EMBEDDER=openai requires OPENAI_API_KEY")
		}
		return chromem.NewOpenAI(key), nil
	case "ollama":
		model := os.Getenv("OLLAMA_EMBED_MODEL")
		if model == "" {
			model = "nomic-embed-text"
		}
		return chromem.NewOllama(model, os.Getenv("OLLAMA_BASE_URL"), 768), nil
	default:
		return mock.New(256), nil
	}
}

// buildStore picks the snapshot backend from SNAPSHOT_PATH; a .db
// suffix selects bbolt, anything else the JSON file store.
func buildStore() (conversation.SnapshotStore, error) {
	path := os.Getenv("SNAPSHOT_PATH")
	if path == "" {
		path = "conversation.json"
	}
	if strings.HasSuffix(path, ".db") {
		return bolt.New(path)
	}
	return file.New(path), nil
}
