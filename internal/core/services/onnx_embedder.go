// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

func initONNXRuntime(sharedLibrary string) error {
	ortOnce.Do(func() {
		if sharedLibrary != "" {
			ort.SetSharedLibraryPath(sharedLibrary)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ONNXEmbedder runs a sentence transformer exported to ONNX in process.
// Token vectors are mean pooled over the attention mask and L2 normalised.
type ONNXEmbedder struct {
	name      string
	tokenizer *tokenizer.Tokenizer
	session   *ort.DynamicAdvancedSession
	maxLength int
	mu        sync.Mutex
}

func NewONNXEmbedder(modelPath string, tokenizerPath string, sharedLibrary string, maxLength int) (*ONNXEmbedder, error) {
	tok, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	if err := initONNXRuntime(sharedLibrary); err != nil {
		return nil, fmt.Errorf("failed to initialize onnx runtime: %w", err)
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("failed to set graph optimization: %w", err)
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if maxLength <= 0 {
		maxLength = 256
	}
	name := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))
	return &ONNXEmbedder{name: "onnx/" + name, tokenizer: tok, session: session, maxLength: maxLength}, nil
}

func (o *ONNXEmbedder) Name() string { return o.name }

func (o *ONNXEmbedder) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	err := o.session.Destroy()
	o.session = nil
	return err
}

func (o *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	encodings, err := o.tokenizer.EncodeBatch([]tokenizer.EncodeInput{
		tokenizer.NewSingleEncodeInput(tokenizer.NewInputSequence(text)),
	}, true)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed: %w", err)
	}
	if len(encodings) != 1 {
		return nil, errors.New("tokenizer returned no encoding")
	}
	enc := encodings[0]
	ids := enc.GetIds()
	mask := enc.GetAttentionMask()
	length := min(len(ids), o.maxLength)
	if length == 0 {
		return nil, errors.New("text produced no tokens")
	}

	inputIDs := make([]int64, length)
	attention := make([]int64, length)
	tokenTypes := make([]int64, length)
	for i := 0; i < length; i++ {
		inputIDs[i] = int64(ids[i])
		attention[i] = int64(mask[i])
	}

	shape := ort.NewShape(1, int64(length))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, err
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attention)
	if err != nil {
		return nil, err
	}
	defer maskTensor.Destroy()
	typesTensor, err := ort.NewTensor(shape, tokenTypes)
	if err != nil {
		return nil, err
	}
	defer typesTensor.Destroy()

	outputs := make([]ort.Value, 1)
	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return nil, errors.New("onnx embedder is closed")
	}
	err = o.session.Run([]ort.Value{idsTensor, maskTensor, typesTensor}, outputs)
	o.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("output tensor is not float32")
	}
	dims := hidden.GetShape()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	return MeanPool(hidden.GetData(), attention, int(dims[1]), int(dims[2])), nil
}

// MeanPool averages the token vectors of a single sequence whose mask is
// set and L2 normalises the result.
func MeanPool(hidden []float32, mask []int64, seqLen int, dim int) []float32 {
	out := make([]float32, dim)
	var count float32
	for t := 0; t < seqLen && t < len(mask); t++ {
		if mask[t] == 0 {
			continue
		}
		count++
		row := hidden[t*dim : (t+1)*dim]
		for d, v := range row {
			out[d] += v
		}
	}
	if count == 0 {
		return out
	}
	var norm float64
	for d := range out {
		out[d] /= count
		norm += float64(out[d]) * float64(out[d])
	}
	if norm = math.Sqrt(norm); norm > 0 {
		for d := range out {
			out[d] = float32(float64(out[d]) / norm)
		}
	}
	return out
}
