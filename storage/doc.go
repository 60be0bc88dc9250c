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

// Package storage defines the persistence layer for computed embeddings.
//
// Indexing a corpus means one forward pass per document, which dominates the
// cost of a rebuild. An EmbeddingCache keeps those vectors keyed by model and
// by a content hash of the composite document, so a rebuild after an index
// format change or a partial run only embeds documents that are new or edited.
//
// # Architecture
//
//   - EmbeddingCache: get and put vectors for one model
//   - Serialization: compact mus-go encoding of vectors
//   - badger: the BadgerDB implementation
//
// # Usage
//
//	cache, err := badger.OpenEmbeddingCache("/var/lib/mizan/cache")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
//
// Use in tests with in-memory storage:
//
//	cache, err := badger.NewMemoryEmbeddingCache()
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
package storage
