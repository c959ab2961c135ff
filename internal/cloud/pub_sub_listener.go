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

// Package cloud holds the clients and configuration shared by the service.
// This file connects a Pub/Sub subscription to a command so messages can
// trigger video ingestion without going through the HTTP API.
//
// Logic Flow:
//  1. A PubSubListener is created for a subscription ID.
//  2. The command run per message is attached with SetCommand.
//  3. Listen starts a background goroutine that receives messages until the
//     context is cancelled.
//  4. Each message payload is placed under cor.CtxIn of a fresh chain context
//     and the command is executed inside a "receive-message" span.
//  5. The message is acknowledged whether or not the command succeeded.
//     Ingestion is never retried: a failure is logged with the joined chain
//     errors, and a redelivery after a partial run would append duplicate
//     chunks to the index.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener feeds every message of a subscription into a command. The
// message payload is placed under cor.CtxIn as a string.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
}

func NewPubSubListener(pubsubClient *pubsub.Client, subscriptionID string, command cor.Command) (*PubSubListener, error) {
	return &PubSubListener{
		client:       pubsubClient,
		subscription: pubsubClient.Subscription(subscriptionID),
		command:      command,
	}, nil
}

// SetCommand sets the command run per message. A command that is already set
// is kept.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts receiving in a background goroutine until ctx is done. Every
// message is acked once the command has run; failures are only logged.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscription.ID())
	go func() {
		tracer := otel.Tracer("ingestion-trigger-listener")
		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(msgCtx, "receive-message")
			defer span.End()
			span.SetAttributes(attribute.String("message.id", msg.ID))

			// Ack on every path. Nack or an expired deadline would redeliver.
			defer msg.Ack()

			if err := m.Process(spanCtx, msg.Data); err != nil {
				span.SetStatus(codes.Error, "failed")
				slog.ErrorContext(spanCtx, "message processing failed, not retrying", "message_id", msg.ID, "error", err)
				return
			}
			span.SetStatus(codes.Ok, "")
		})
		if err != nil {
			slog.Error("error receiving messages", "subscription", m.subscription.ID(), "error", err)
		}
	}()
}

// Process runs the command on a single payload and returns the joined errors
// of the chain, if any. Temporary files registered by the chain are removed
// before it returns.
func (m *PubSubListener) Process(ctx context.Context, data []byte) error {
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, string(data))

	m.command.Execute(chainCtx)
	return cor.Err(chainCtx)
}
