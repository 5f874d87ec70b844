// Package tasks orchestrates playlist operations with real-time progress reporting.
//
// # Core Operations
//
// [PlaylistEngine] owns the currently loaded [models.PlaylistTable] and exposes three operations:
//
//  1. [PlaylistEngine.LoadPlaylist] : aggregate a playlist into a table
//     - Paginates playlist items from the primary provider in original order
//     - Fetches album release dates in parallel with audio features
//     - Falls back to a per-track BPM lookup for tracks still missing tempo
//     - Returns the table with a [LoadReport] naming degraded sources
//
//  2. [SortTable] : compute a new order for a table
//     - Column sorts place unknown values last and break ties by original position
//     - Artist separation spreads same-artist tracks apart
//     - Random shuffles with an optional fixed seed
//
//  3. [PlaylistEngine.SaveOrder] : write an order back upstream
//     - Plans a bounded sequence of range moves with [PlanMoves]
//     - Applies moves serially, chaining snapshot tokens
//     - Verifies the final order with a fresh fetch
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Failure Handling
//
// Secondary sources (albums, features, BPM) never abort a load; their failures are logged and reported
// per source. Write failures return a [WriteBackError] holding the last known-good upstream order.
package tasks
