//go:build onnx
// +build onnx

package ner

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"unicode"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// OnnxBackend implements Backend with a token-classification model running
// on ONNX Runtime (via yalue/onnxruntime_go). The model directory must hold
// the .onnx file plus <model>.vocab.json (token -> id) and
// <model>.labels.json (index -> BIO label).
type OnnxBackend struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	vocab      map[string]int64
	labels     []string
	logger     *zap.Logger
	ready      bool
	mu         sync.RWMutex
}

const unkTokenID = int64(0)

// NewBackend initializes the ONNX Runtime backend. Requires build tag 'onnx'.
func NewBackend(logger *zap.Logger, modelPath string) Backend {
	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		logger.Error("ONNX Runtime environment init failed", zap.Error(err))
		return nil
	}

	vocab, err := loadVocab(modelPath + ".vocab.json")
	if err != nil {
		logger.Error("Failed to load NER vocabulary", zap.Error(err))
		return nil
	}
	labels, err := loadLabels(modelPath + ".labels.json")
	if err != nil {
		logger.Error("Failed to load NER label set", zap.Error(err))
		return nil
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		logger.Error("Failed to inspect ONNX model IO", zap.Error(err), zap.String("model", modelPath))
		return nil
	}
	if len(outputsInfo) == 0 {
		logger.Error("ONNX model reports no outputs", zap.String("model", modelPath))
		return nil
	}

	preferredInputs := []string{"input_ids", "attention_mask"}
	available := map[string]bool{}
	for _, ii := range inputsInfo {
		available[strings.ToLower(ii.Name)] = true
	}
	var inputNames []string
	for _, name := range preferredInputs {
		if available[name] {
			inputNames = append(inputNames, name)
		}
	}
	if len(inputNames) == 0 {
		logger.Error("ONNX model lacks input_ids/attention_mask inputs", zap.String("model", modelPath))
		return nil
	}
	outputName := outputsInfo[0].Name

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		logger.Error("ONNX Runtime session creation failed", zap.Error(err), zap.String("model", modelPath))
		return nil
	}

	logger.Info("ONNX NER backend ready",
		zap.String("model", modelPath),
		zap.Int("vocab_size", len(vocab)),
		zap.Int("labels", len(labels)))

	return &OnnxBackend{
		session:    sess,
		inputNames: inputNames,
		outputName: outputName,
		vocab:      vocab,
		labels:     labels,
		logger:     logger,
		ready:      true,
	}
}

// IsReady reports whether the backend is initialized.
func (b *OnnxBackend) IsReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready && b.session != nil
}

// Close releases session and environment resources.
func (b *OnnxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
	ort.DestroyEnvironment()
	b.ready = false
	return nil
}

// token is one whitespace-delimited word with its byte span in the text.
type token struct {
	text      string
	byteStart int
	byteEnd   int
}

// DetectEntities tokenizes the text, runs token classification, and merges
// consecutive same-label tokens (BIO scheme) into entity spans.
func (b *OnnxBackend) DetectEntities(ctx context.Context, text string) ([]Entity, error) {
	if !b.IsReady() {
		return nil, fmt.Errorf("onnx backend not ready")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	inputIDs := make([]int64, len(tokens))
	attention := make([]int64, len(tokens))
	for i, tok := range tokens {
		id, ok := b.vocab[strings.ToLower(tok.text)]
		if !ok {
			id = unkTokenID
		}
		inputIDs[i] = id
		attention[i] = 1
	}

	shape := ort.NewShape(1, int64(len(tokens)))
	idsTensor, err := ort.NewTensor[int64](shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor[int64](shape, attention)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := make([]ort.Value, 0, len(b.inputNames))
	for _, name := range b.inputNames {
		if strings.Contains(strings.ToLower(name), "mask") {
			inputs = append(inputs, maskTensor)
		} else {
			inputs = append(inputs, idsTensor)
		}
	}

	outputs := make([]ort.Value, 1)
	if err := b.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run failed: %w", err)
	}
	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("onnx returned no outputs")
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want float32 tensor)")
	}
	data := outTensor.GetData()
	outShape := outTensor.GetShape()
	if len(outShape) != 3 || int(outShape[1]) != len(tokens) || int(outShape[2]) != len(b.labels) {
		return nil, fmt.Errorf("unsupported output shape %v (want [1 %d %d])", outShape, len(tokens), len(b.labels))
	}

	return b.mergeEntities(tokens, data), nil
}

// mergeEntities argmaxes per-token logits and folds B-/I- runs of the same
// label into one entity whose confidence is the mean token confidence.
func (b *OnnxBackend) mergeEntities(tokens []token, logits []float32) []Entity {
	numLabels := len(b.labels)
	var entities []Entity
	var current *Entity
	var confSum float32
	var confCount int

	flush := func() {
		if current != nil && confCount > 0 {
			current.Confidence = confSum / float32(confCount)
			entities = append(entities, *current)
		}
		current = nil
		confSum, confCount = 0, 0
	}

	for i, tok := range tokens {
		row := logits[i*numLabels : (i+1)*numLabels]
		best, conf := argmaxSoftmax(row)
		label := b.labels[best]

		if label == "O" {
			flush()
			continue
		}
		base := strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
		begins := strings.HasPrefix(label, "B-") || current == nil || trimBIO(current.Label) != base

		if begins {
			flush()
			current = &Entity{Label: base, ByteStart: tok.byteStart, ByteEnd: tok.byteEnd}
		} else {
			current.ByteEnd = tok.byteEnd
		}
		confSum += conf
		confCount++
	}
	flush()
	return entities
}

func trimBIO(label string) string {
	return strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
}

func argmaxSoftmax(row []float32) (int, float32) {
	best := 0
	for i := range row {
		if row[i] > row[best] {
			best = i
		}
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - row[best]))
	}
	return best, float32(1.0 / sum)
}

// tokenize splits on unicode whitespace, keeping byte offsets and stripping
// trailing punctuation so spans stay tight around the entity text.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, trimToken(text, start, i))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, trimToken(text, start, len(text)))
	}
	return tokens
}

func trimToken(text string, start, end int) token {
	word := text[start:end]
	trimmed := strings.TrimRightFunc(word, unicode.IsPunct)
	if trimmed != "" {
		end = start + len(trimmed)
		word = trimmed
	}
	return token{text: word, byteStart: start, byteEnd: end}
}

func loadVocab(path string) (map[string]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vocab := make(map[string]int64)
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("malformed vocabulary file %s: %w", path, err)
	}
	return vocab, nil
}

func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("malformed label file %s: %w", path, err)
	}
	return labels, nil
}
