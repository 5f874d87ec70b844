package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alpsaur/SortYourMusic/internal/shared"
)

func newTestBPM(t *testing.T, h http.HandlerFunc) (*GetSongBPMService, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	svc := NewGetSongBPMService(BPMOptions{
		APIKey:        "key",
		BaseURL:       srv.URL,
		Timeout:       time.Second,
		RetryAttempts: 2,
		RetryWait:     time.Millisecond,
		Logger:        shared.NewLogger(io.Discard),
	})
	return svc, &hits
}

func TestGetSongBPMService(t *testing.T) {
	ctx := context.Background()

	t.Run("picks the matching artist", func(t *testing.T) {
		svc, _ := newTestBPM(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("api_key") != "key" || q.Get("type") != "both" || q.Get("lookup") != "song:Halo artist:Beyonce" {
				t.Errorf("unexpected query %v", q)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"search":[
				{"id":"1","title":"Halo","tempo":"90","artist":{"name":"Somebody Else"}},
				{"id":"2","title":"Halo","tempo":"80","artist":{"name":"beyonce"}}
			]}`))
		})

		bpm, err := svc.LookupBPM(ctx, "Beyonce", "Halo")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if bpm != 80 {
			t.Errorf("expected 80, got %v", bpm)
		}
	})

	t.Run("no result", func(t *testing.T) {
		svc, _ := newTestBPM(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"search":{"error":"no result"}}`))
		})
		if _, err := svc.LookupBPM(ctx, "a", "b"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("rate limit backs off then gives up", func(t *testing.T) {
		svc, hits := newTestBPM(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := svc.LookupBPM(ctx, "a", "b")
		if !errors.Is(err, shared.ErrTransientFetch) {
			t.Errorf("expected ErrTransientFetch, got %v", err)
		}
		if hits.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", hits.Load())
		}
	})

	t.Run("rate limit then success", func(t *testing.T) {
		var n atomic.Int32
		svc, _ := newTestBPM(t, func(w http.ResponseWriter, r *http.Request) {
			if n.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"search":[{"tempo":"128","artist":{"name":"a"}}]}`))
		})
		bpm, err := svc.LookupBPM(ctx, "a", "b")
		if err != nil || bpm != 128 {
			t.Errorf("expected 128 after retry, got %v (%v)", bpm, err)
		}
	})

	t.Run("bad key disables the service", func(t *testing.T) {
		svc, hits := newTestBPM(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		if _, err := svc.LookupBPM(ctx, "a", "b"); !errors.Is(err, shared.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
		if _, err := svc.LookupBPM(ctx, "a", "c"); !errors.Is(err, shared.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
		if !svc.Disabled() || hits.Load() != 1 {
			t.Errorf("expected disabled after one request, got %d requests", hits.Load())
		}
	})
}

func TestParseTempo(t *testing.T) {
	tc := []struct {
		name    string
		body    string
		artist  string
		want    float64
		wantErr error
	}{
		{"first result when no artist match", `{"search":[{"tempo":"100","artist":{"name":"x"}}]}`, "y", 100, nil},
		{"numeric tempo", `{"search":[{"tempo":95.5}]}`, "", 95.5, nil},
		{"empty tempo", `{"search":[{"tempo":""}]}`, "", 0, shared.ErrTrackNotFound},
		{"empty array", `{"search":[]}`, "", 0, shared.ErrTrackNotFound},
		{"invalid json", `not json`, "", 0, shared.ErrAPIRequest},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTempo([]byte(tt.body), tt.artist)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("parseTempo() = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}
