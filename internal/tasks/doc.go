// Package tasks runs the playlist generation pipeline with real-time progress reporting.
//
// # Core Operations
//
// [PlaylistEngine] implements [Generator]:
//
//  1. [PlaylistEngine.Generate] : seeds and prompt to an ordered track list
//     - Asks the [services.Recommender] for suggestions and a playlist name
//     - Resolves each suggestion with one catalog search, first hit wins
//     - Drops suggestions that do not resolve, keeps suggestion order
//     - Prepends the seed tracks tagged with [models.SeedReason]
//
//  2. [PlaylistEngine.Save] : creates a private playlist and adds all tracks in one call
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
