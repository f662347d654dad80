// Package models defines domain entities and persistence interfaces for the djai playlist generator.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): structs shared between the catalog, the completion service and the client
//   - [Track] : Catalog track metadata, decoded directly from Spotify responses
//   - [Suggestion] : A (title, artist, reason) triple proposed by the completion service
//   - [ResolvedEntry] : A suggestion or seed paired with a concrete [Track]
//   - [GenerationSession] : One generate action, inputs and output, as kept in history
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Session] : A browser session bound to a Spotify account and its [Credential]
//
// Persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
