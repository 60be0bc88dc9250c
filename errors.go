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

package mizan

import "errors"

var (
	// ErrLoaderRequired is returned when an engine is created without a corpus loader.
	ErrLoaderRequired = errors.New("corpus loader required")

	// ErrProviderRequired is returned when neither a provider nor an AI config is set.
	ErrProviderRequired = errors.New("AI provider or config required")

	// ErrNotInitialized reports that no initialization has completed yet.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrInitFailed wraps the cause of a failed Init.
	ErrInitFailed = errors.New("engine initialization failed")

	// ErrQueryFailed is returned when a query panics.
	ErrQueryFailed = errors.New("query failed")

	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("engine closed")
)
