// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ai provides abstractions for the models used by Mizan.
//
// Two model roles exist. An Embedder maps text to a unit-length vector used
// for first-stage retrieval. A Reranker is a cross-encoder that scores a
// (query, passage) pair and is used to reorder first-stage candidates.
// An AIProvider aggregates both for convenient initialization.
//
// # Implementation Packages
//
//   - ai/local: in-process BERT models loaded from disk (the default)
//   - ai/openai: remote embeddings from an OpenAI-compatible API
//   - ai/mock: test doubles with deterministic output
//
// Public constructors of the production packages return interface types.
// The mock constructors return concrete types so tests can inject behavior
// and inspect call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(
//	    ai.WithEmbeddingModelDir("models/embedder"),
//	    ai.WithRerankerModelDir("models/reranker"),
//	)
//	provider, err := local.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "What is patience?")
package ai
