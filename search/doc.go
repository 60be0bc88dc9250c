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

// Package search implements two-stage retrieval over a vector index.
//
// The Searcher runs each query through these stages:
//   - Term normalization of domain vocabulary
//   - Query embedding
//   - Exhaustive cosine retrieval of a candidate set
//   - Optional cross-encoder reranking of the candidates
//   - Result assembly with score fusion and ranks
//
// Reranking replaces the first-stage ordering, it never blends with it.
// Score fusion lives only in Assemble.
package search
