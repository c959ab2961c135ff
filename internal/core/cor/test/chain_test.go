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

package cor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/stretchr/testify/assert"
)

type upper struct {
	cor.BaseCommand
	calls int
}

func (u *upper) Execute(context cor.Context) {
	u.calls++
	in := context.Get(u.GetInputParam()).(string)
	u.Succeed(context, strings.ToUpper(in))
}

type suffix struct {
	cor.BaseCommand
	calls int
}

func (s *suffix) Execute(context cor.Context) {
	s.calls++
	in := context.Get(s.GetInputParam()).(string)
	s.Succeed(context, in+"!")
}

type failing struct {
	cor.BaseCommand
}

func (f *failing) Execute(context cor.Context) {
	f.Fail(context, errors.New("boom"))
}

type never struct {
	cor.BaseCommand
	calls int
}

func (n *never) IsExecutable(cor.Context) bool { return false }

func (n *never) Execute(cor.Context) { n.calls++ }

func newContext(in string) cor.Context {
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.Add(cor.CtxIn, in)
	return chCtx
}

func TestChainPipesOutputToNextInput(t *testing.T) {
	u := &upper{BaseCommand: *cor.NewBaseCommand("upper")}
	s := &suffix{BaseCommand: *cor.NewBaseCommand("suffix")}
	chain := cor.NewBaseChain("pipe").AddCommand(u).AddCommand(s)

	chCtx := newContext("sky")
	chain.Execute(chCtx)

	assert.False(t, chCtx.HasErrors())
	assert.Equal(t, "SKY!", chCtx.Get(cor.CtxIn))
	assert.Nil(t, chCtx.Get(cor.CtxOut))
}

func TestChainStopsOnFailure(t *testing.T) {
	s := &suffix{BaseCommand: *cor.NewBaseCommand("suffix")}
	chain := cor.NewBaseChain("stop").
		AddCommand(&failing{BaseCommand: *cor.NewBaseCommand("failing")}).
		AddCommand(s)

	chCtx := newContext("sky")
	chain.Execute(chCtx)

	assert.True(t, chCtx.HasErrors())
	assert.Equal(t, 0, s.calls)
	assert.ErrorContains(t, cor.Err(chCtx), "failing: boom")
}

func TestChainContinuesOnFailureWhenAsked(t *testing.T) {
	s := &suffix{BaseCommand: *cor.NewBaseCommand("suffix")}
	s.InputParamName = "word"
	chain := cor.NewBaseChain("continue").
		AddCommand(&failing{BaseCommand: *cor.NewBaseCommand("failing")}).
		AddCommand(s).
		ContinueOnFailure(true)

	chCtx := newContext("sky")
	chCtx.Add("word", "sea")
	chain.Execute(chCtx)

	assert.Equal(t, 1, s.calls)
	assert.Equal(t, "sea!", chCtx.Get(cor.CtxIn))
}

func TestChainSkipsCommandsThatCannotRun(t *testing.T) {
	n := &never{BaseCommand: *cor.NewBaseCommand("never")}
	u := &upper{BaseCommand: *cor.NewBaseCommand("upper")}
	chain := cor.NewBaseChain("skip").AddCommand(n).AddCommand(u)

	chCtx := newContext("sky")
	chain.Execute(chCtx)

	assert.Equal(t, 0, n.calls)
	assert.Equal(t, 1, u.calls)
	assert.False(t, chCtx.HasErrors())
	assert.Equal(t, "SKY", chCtx.Get(cor.CtxIn))
}

type parentKey struct{}

func TestChainRestoresParentContext(t *testing.T) {
	parent := context.WithValue(context.Background(), parentKey{}, "parent")
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(parent)
	chCtx.Add(cor.CtxIn, "x")

	cor.NewBaseChain("restore").AddCommand(&upper{BaseCommand: *cor.NewBaseCommand("upper")}).Execute(chCtx)

	assert.Equal(t, parent, chCtx.GetContext())
}

func TestCloseRemovesTempFilesAndDirectories(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "frame.jpg")
	sub := filepath.Join(dir, "frames")
	assert.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.NoError(t, os.MkdirAll(filepath.Join(sub, "nested"), 0o755))

	chCtx := cor.NewBaseContext()
	chCtx.AddTempFile(file)
	chCtx.AddTempFile(sub)
	chCtx.Close()

	_, err := os.Stat(file)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(sub)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, chCtx.GetTempFiles())
}

func TestErrIsNilWithoutErrors(t *testing.T) {
	assert.NoError(t, cor.Err(cor.NewBaseContext()))
}
