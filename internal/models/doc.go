// Package models defines the domain entities shared by the auth flow, provider clients, and playlist engine.
//
// The package contains three groups of types:
//
// 1. Catalog records as returned by providers
//   - [Track] : one playlist entry, immutable once fetched
//   - [AlbumInfo] : release metadata joined by album id
//   - [FeatureSet] : audio features joined by track id, every field independently optional
//
// 2. The aggregated table
//   - [Row] : Track joined with its AlbumInfo and FeatureSet
//   - [PlaylistTable] : ordered, uniquely keyed rows plus the cached artist-separation metric
//   - [SortSpec] : key and direction supplied per sort request
//   - [Move] : one contiguous range move against the upstream playlist
//
// 3. Client-side auth state
//   - [Session] : the bearer token and its refresh material
//   - [PendingAuth] : the verifier held between authorize redirect and code exchange
//
// Unknown values are represented with [Measure] (Known == false) or empty strings, never by absent fields.
package models
