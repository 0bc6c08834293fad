//go:build onnx

// Package onnx runs a local sentence-transformer (all-MiniLM-L6-v2 by
// default) through ONNX Runtime for fully offline embeddings.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Config configures the local embedder.
type Config struct {
	// SharedLibraryPath points at libonnxruntime. Required.
	SharedLibraryPath string

	// ModelPath is the ONNX model file. Required.
	ModelPath string

	// TokenizerPath is the HuggingFace tokenizer.json holding the
	// WordPiece vocabulary. Required.
	TokenizerPath string

	// Dimensions is the hidden size of the model. Defaults to 384.
	Dimensions int

	// MaxSequenceLength bounds tokenized input. Defaults to 128.
	MaxSequenceLength int
}

// Embedder produces embeddings from a local ONNX model.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	vocab      map[string]int
	dimensions int
	maxSeqLen  int
}

// BERT special token ids shared by MiniLM-family vocabularies.
const (
	unkTokenID = 100
	clsTokenID = 101
	sepTokenID = 102
)

// New initializes the runtime and loads model and vocabulary.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("ModelPath and TokenizerPath are required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.MaxSequenceLength == 0 {
		cfg.MaxSequenceLength = 128
	}

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	vocab, err := loadVocab(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer vocab: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Embedder{
		session:    session,
		vocab:      vocab,
		dimensions: cfg.Dimensions,
		maxSeqLen:  cfg.MaxSequenceLength,
	}, nil
}

// Embed tokenizes the text, runs the model, mean-pools the attended
// hidden states and normalizes to a unit vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	seqLen := e.maxSeqLen
	inputIDs := make([]int64, seqLen)
	attentionMask := make([]int64, seqLen)
	tokenTypeIDs := make([]int64, seqLen)

	tokens := e.tokenize(text)
	if len(tokens) > seqLen-2 {
		tokens = tokens[:seqLen-2]
	}

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1
	for i, id := range tokens {
		inputIDs[i+1] = id
		attentionMask[i+1] = 1
	}
	inputIDs[len(tokens)+1] = sepTokenID
	attentionMask[len(tokens)+1] = 1

	shape := ort.NewShape(1, int64(seqLen))
	inputs := make([]ort.Value, 0, 3)
	for _, data := range [][]int64{inputIDs, attentionMask, tokenTypeIDs} {
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			for _, in := range inputs {
				in.Destroy()
			}
			return nil, fmt.Errorf("create input tensor: %w", err)
		}
		inputs = append(inputs, tensor)
	}
	defer func() {
		for _, in := range inputs {
			in.Destroy()
		}
	}()

	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	return e.meanPool(hidden, attentionMask)
}

// meanPool averages hidden states over attended positions.
func (e *Embedder) meanPool(hidden *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := hidden.GetData()
	shape := hidden.GetShape()
	if len(shape) != 3 || shape[0] != 1 || shape[2] != int64(e.dimensions) {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}

	out := make([]float32, e.dimensions)
	var attended float32
	for i := 0; i < int(shape[1]); i++ {
		if attentionMask[i] == 0 {
			continue
		}
		attended++
		offset := i * e.dimensions
		for j := 0; j < e.dimensions; j++ {
			out[j] += data[offset+j]
		}
	}
	if attended == 0 {
		return nil, fmt.Errorf("no attended tokens")
	}

	var norm float64
	for j := range out {
		out[j] /= attended
		norm += float64(out[j]) * float64(out[j])
	}
	if norm == 0 {
		return nil, fmt.Errorf("model produced a zero vector")
	}
	scale := float32(1 / math.Sqrt(norm))
	for j := range out {
		out[j] *= scale
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

func loadVocab(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer vocab is empty")
	}
	return doc.Model.Vocab, nil
}

// tokenize performs lowercase greedy WordPiece over whitespace-split words.
func (e *Embedder) tokenize(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		if id, ok := e.vocab[word]; ok {
			ids = append(ids, int64(id))
			continue
		}
		ids = append(ids, e.wordPiece(word)...)
	}
	return ids
}

func (e *Embedder) wordPiece(word string) []int64 {
	var ids []int64
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := e.vocab[piece]; ok {
				ids = append(ids, int64(id))
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			ids = append(ids, unkTokenID)
			start++
		}
	}
	return ids
}
