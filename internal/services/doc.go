// Package services implements the provider clients consulted by the playlist engine.
//
// # Providers
//
// Each upstream data source sits behind a small interface with its own pagination or batch contract:
//   - [TrackProvider] : cursor-paginated playlist items plus playlist metadata (snapshot token)
//   - [AlbumProvider] : album metadata in batches of at most [AlbumBatchSize] ids
//   - [FeatureProvider] : audio features in batches of at most [FeatureBatchSize] ids
//   - [BPMProvider] : per-track tempo lookup by artist and title
//   - [Reorderer] : range-move writes chained by snapshot token
//
// [SpotifyService] implements the first four catalog interfaces on top of github.com/zmb3/spotify/v2.
// [GetSongBPMService] implements [BPMProvider] with resty and gjson.
//
// # Tokens
//
// No client holds a session. Every call takes the bearer token explicitly, and a 401 from upstream is
// reported to the configured [ExpiryNotifier] before the call returns [shared.ErrTokenExpired].
//
// # Error Handling
//
// Upstream failures are classified into the shared sentinels:
//   - [shared.ErrTokenExpired] : token rejected; never retried
//   - [shared.ErrProviderUnavailable] : categorical rejection; the source is disabled for the process
//   - [shared.ErrTransientFetch] : network, timeout, rate limit, 5xx; retried by [RetryPolicy]
//   - [shared.ErrPlaylistNotFound] : unknown playlist id
//   - [shared.ErrAPIRequest] : anything else
package services
