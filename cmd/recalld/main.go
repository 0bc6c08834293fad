// Command recalld serves the memory session over HTTP: a JSON turn
// endpoint, a websocket chat endpoint, and a health check.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/becomeliminal/recall/conversation"
	"github.com/becomeliminal/recall/conversation/store/bolt"
	"github.com/becomeliminal/recall/conversation/store/file"
	"github.com/becomeliminal/recall/gateway"
	"github.com/becomeliminal/recall/prompt"
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

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	embedder, err := buildEmbedder()
	if err != nil {
		log.Fatal(err)
	}
	cached, err := provider.NewCachedEmbedder(embedder, 4096)
	if err != nil {
		log.Fatal(err)
	}
	defer cached.Close()

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

	opts := []session.Option{}
	if dir := os.Getenv("PROMPT_DIR"); dir != "" {
		loader := prompt.NewLoader(dir)
		go func() {
			if err := loader.Watch(ctx); err != nil {
				log.Printf("[PROMPT] hot reload unavailable: %v", err)
			}
		}()
		opts = append(opts, session.WithPrompts(loader))
	}

	s, err := session.New(ctx, cached, completer, store, opts...)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("loaded %d messages, %d notes", s.Conversation().Len(), len(s.Conversation().Notes()))
	if err := gateway.New(s).Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

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
