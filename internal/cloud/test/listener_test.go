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

package cloud_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/stretchr/testify/assert"
)

// recordingCommand fails when Err is set and remembers every payload.
type recordingCommand struct {
	cor.BaseCommand
	Err      error
	Payloads chan string
}

func newRecordingCommand(err error) *recordingCommand {
	return &recordingCommand{BaseCommand: *cor.NewBaseCommand("recording"), Err: err, Payloads: make(chan string, 16)}
}

func (c *recordingCommand) Execute(context cor.Context) {
	c.Payloads <- context.Get(cor.CtxIn).(string)
	if c.Err != nil {
		c.Fail(context, c.Err)
		return
	}
	c.Succeed(context, nil)
}

func newTestSubscription(t *testing.T, ctx context.Context) (*pstest.Server, *pubsub.Client) {
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })
	t.Setenv("PUBSUB_EMULATOR_HOST", srv.Addr)

	client, err := pubsub.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "ingestion")
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.CreateSubscription(ctx, "ingestion-sub", pubsub.SubscriptionConfig{Topic: topic, AckDeadline: 10 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return srv, client
}

func TestListenerAcksFailedMessageWithoutRedelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv, client := newTestSubscription(t, ctx)

	command := newRecordingCommand(errors.New("download failed"))
	listener, err := cloud.NewPubSubListener(client, "ingestion-sub", command)
	assert.NoError(t, err)
	listener.Listen(ctx)

	id := srv.Publish("projects/test-project/topics/ingestion", []byte(`{}`), nil)

	select {
	case payload := <-command.Payloads:
		assert.Equal(t, `{}`, payload)
	case <-time.After(10 * time.Second):
		t.Fatal("message was not delivered")
	}
	assert.Eventually(t, func() bool { return srv.Message(id).Acks == 1 }, 5*time.Second, 50*time.Millisecond)

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, srv.Message(id).Deliveries)
	assert.Len(t, command.Payloads, 0)
}

func TestListenerAcksSuccessfulMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv, client := newTestSubscription(t, ctx)

	command := newRecordingCommand(nil)
	listener, err := cloud.NewPubSubListener(client, "ingestion-sub", command)
	assert.NoError(t, err)
	listener.Listen(ctx)

	id := srv.Publish("projects/test-project/topics/ingestion", []byte(`{"video_url":"https://example.com/v"}`), nil)
	assert.Eventually(t, func() bool { return srv.Message(id).Acks == 1 }, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, 1, srv.Message(id).Deliveries)
}

func TestProcessReturnsJoinedChainError(t *testing.T) {
	ctx := context.Background()
	_, client := newTestSubscription(t, ctx)

	failing, err := cloud.NewPubSubListener(client, "ingestion-sub", newRecordingCommand(errors.New("boom")))
	assert.NoError(t, err)
	err = failing.Process(ctx, []byte("payload"))
	assert.ErrorContains(t, err, "recording: boom")

	ok, err := cloud.NewPubSubListener(client, "ingestion-sub", newRecordingCommand(nil))
	assert.NoError(t, err)
	assert.NoError(t, ok.Process(ctx, []byte("payload")))
}
