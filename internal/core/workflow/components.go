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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
)

// Components are the process-wide models and stores the pipelines are built
// from. They are created once and shared by every request.
type Components struct {
	Downloader     commands.VideoDownloader
	AudioExtractor commands.AudioExtractor
	Scenes         commands.SceneSource
	Transcripts    commands.TranscriptSource
	Index          services.VectorIndex
	Metadata       services.MetadataRepository
	Classifier     commands.IntentClassifier
	Retriever      commands.ChunkRetriever
	Answerer       commands.Answerer

	StorageClient *storage.Client
	DownloadDir   string
	ArchiveBucket string

	closers []func() error
}

// Close releases models that hold native resources.
func (c *Components) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer())
	}
	return errors.Join(errs...)
}

// NewComponents wires the components selected by config on top of the
// shared service clients.
func NewComponents(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients) (out *Components, err error) {
	out = &Components{
		StorageClient: clients.StorageClient,
		DownloadDir:   config.Storage.DownloadDir,
		ArchiveBucket: config.Storage.CaptionArchiveBucket,
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			out = nil
		}
	}()

	runner := services.ExecRunner{}
	ytdlp := services.NewYtDlp(config.Downloader.Command, config.Downloader.Format, runner)
	ffmpeg := services.NewFFmpeg(config.Downloader.FFmpeg, config.Downloader.FFprobe, runner)
	out.Downloader = services.NewDownloader(ytdlp, config.Storage.DownloadDir)
	out.AudioExtractor = ffmpeg

	maxRetries := config.Application.MaxRetries

	captionModel, ok := clients.AgentModels[cloud.ModelCaptioner]
	if !ok {
		return out, fmt.Errorf("agent model %q is not configured", cloud.ModelCaptioner)
	}
	captioner := services.NewGeminiCaptioner(captionModel, services.ParsePrompt("scene-caption", config.PromptTemplates.SceneCaption), maxRetries)
	out.Scenes = services.NewSceneSampler(ffmpeg, captioner,
		config.SceneSampler.IntervalSeconds, config.SceneSampler.BatchSize, config.SceneSampler.Placeholder, config.Storage.DownloadDir)

	var stt services.SpeechToText
	if clients.OpenAIClient != nil {
		stt = services.NewWhisperSpeechToText(clients.OpenAIClient, config.Transcript.SpeechModel)
	}
	var translator services.Translator
	if model, ok := clients.AgentModels[cloud.ModelTranslator]; ok {
		translator = services.NewGeminiTranslator(model, services.ParsePrompt("translation", config.PromptTemplates.Translation), maxRetries)
	}
	out.Transcripts = services.NewTranscriptAcquirer(
		services.NewYtDlpCaptionSource(ytdlp, config.Transcript.PreferredLanguage),
		stt, translator,
		config.Transcript.TargetLanguage, config.Transcript.FallbackLanguage, config.Storage.CaptionDir)

	embedder, err := out.newEmbedder(config, clients)
	if err != nil {
		return out, err
	}
	if out.Index, err = NewVectorIndex(ctx, config, clients, embedder); err != nil {
		return out, err
	}
	if out.Metadata, err = NewMetadataRepository(ctx, config, clients); err != nil {
		return out, err
	}

	classifierModel, err := newGenerator(config, clients, cloud.ModelClassifier, nil)
	if err != nil {
		return out, err
	}
	classifier := services.NewQueryClassifier(classifierModel, services.ParsePrompt("classifier", config.PromptTemplates.Classifier))
	out.Classifier = classifier
	out.Retriever = services.NewRetriever(out.Index, config.Retrieval.MaxTopK)

	temperature := services.AnswerTemperature
	answerModel, err := newGenerator(config, clients, cloud.ModelAnswer, &temperature)
	if err != nil {
		return out, err
	}
	out.Answerer = services.NewAnswerSynthesizer(answerModel, services.ParsePrompt("answer", config.PromptTemplates.Answer))
	return out, nil
}

func (c *Components) newEmbedder(config *cloud.Config, clients *cloud.ServiceClients) (services.Embedder, error) {
	key := config.VectorIndex.EmbeddingModel
	values, ok := config.EmbeddingModels[key]
	if !ok {
		return nil, fmt.Errorf("embedding model %q is not configured", key)
	}

	var embedder services.Embedder
	switch values.Provider {
	case "", cloud.ProviderVertex:
		models, ok := clients.EmbeddingModels[key]
		if !ok {
			return nil, fmt.Errorf("no vertex client for embedding model %q", key)
		}
		embedder = services.NewVertexEmbedder(models, values.Model, values.Dimensions, values.MaxRequestsPerMinute)
	case cloud.ProviderOpenAI:
		if clients.OpenAIClient == nil {
			return nil, errors.New("openai embeddings need an openai client")
		}
		embedder = services.NewOpenAIEmbedder(clients.OpenAIClient, values.Model, values.Dimensions, values.MaxRequestsPerMinute)
	case cloud.ProviderONNX:
		onnx, err := services.NewONNXEmbedder(values.ONNXModelPath, values.ONNXTokenizerPath, values.ONNXSharedLibrary, values.MaxSequenceLength)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, onnx.Close)
		embedder = onnx
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", values.Provider)
	}

	if clients.RedisClient != nil {
		embedder = services.NewCachedEmbedder(embedder, clients.RedisClient, time.Duration(config.Cache.TTLSeconds)*time.Second)
	}
	return embedder, nil
}

// NewVectorIndex opens the index backend selected by config.
func NewVectorIndex(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients, embedder services.Embedder) (services.VectorIndex, error) {
	collection := config.VectorIndex.CollectionName
	workers := config.Application.ThreadPoolSize
	dimensions := config.EmbeddingModels[config.VectorIndex.EmbeddingModel].Dimensions

	switch config.VectorIndex.Backend {
	case "", cloud.IndexBackendLocal:
		return services.NewLocalVectorIndex(config.VectorIndex.PersistDirectory, collection, embedder, workers)
	case cloud.IndexBackendPgVector:
		return services.NewPgVectorIndex(ctx, clients.PostgresPool, collection+"_documents", dimensions, embedder, workers)
	case cloud.IndexBackendMilvus:
		return services.NewMilvusVectorIndex(ctx, clients.MilvusClient, collection, dimensions, embedder, workers)
	case cloud.IndexBackendBigQuery:
		return services.NewBigQueryVectorIndex(ctx, clients.BigQueryClient,
			config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.ChunkTable, embedder, workers)
	}
	return nil, fmt.Errorf("unknown vector index backend %q", config.VectorIndex.Backend)
}

// NewMetadataRepository returns nil when metadata persistence is disabled.
func NewMetadataRepository(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients) (services.MetadataRepository, error) {
	switch config.Metadata.Backend {
	case "", cloud.MetadataBackendNone:
		return nil, nil
	case cloud.MetadataBackendPostgres:
		return services.NewPostgresMetadataRepository(ctx, clients.PostgresPool, config.Metadata.Table)
	case cloud.MetadataBackendBigQuery:
		return services.NewVideoService(ctx, clients.BigQueryClient,
			config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.VideoTable)
	}
	return nil, fmt.Errorf("unknown metadata backend %q", config.Metadata.Backend)
}

func newGenerator(config *cloud.Config, clients *cloud.ServiceClients, key string, temperature *float32) (services.TextGenerator, error) {
	values, ok := config.AgentModels[key]
	if !ok {
		return nil, fmt.Errorf("agent model %q is not configured", key)
	}
	if values.Provider == cloud.ProviderOpenAI {
		if clients.OpenAIClient == nil {
			return nil, fmt.Errorf("agent model %q needs an openai client", key)
		}
		generator := services.NewOpenAIGenerator(clients.OpenAIClient, values)
		if temperature != nil {
			generator = generator.WithTemperature(*temperature)
		}
		return generator, nil
	}
	model, ok := clients.AgentModels[key]
	if !ok {
		return nil, fmt.Errorf("no vertex client for agent model %q", key)
	}
	if temperature != nil {
		model = model.WithTemperature(*temperature)
	}
	return services.NewGeminiGenerator(key, model, config.Application.MaxRetries), nil
}
