package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	defaultKeySetTTL          = 10 * time.Minute
	defaultUnknownKidTTL      = time.Minute
	defaultMinRefreshInterval = 30 * time.Second
	unknownKidCacheSize       = 256
)

// KeySource fetches the issuer's currently published signing keys.
type KeySource interface {
	FetchKeys(ctx context.Context) (*jose.JSONWebKeySet, error)
}

// KeySetSnapshot is an immutable view of a fetched key set.
type KeySetSnapshot struct {
	Keys      jose.JSONWebKeySet
	FetchedAt time.Time
	Version   int
}

// lookup returns the public verification key for kid, or nil.
func (s *KeySetSnapshot) lookup(kid string) *jose.JSONWebKey {
	for _, k := range s.Keys.Key(kid) {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub := k.Public()
		if pub.Valid() {
			return &pub
		}
	}
	return nil
}

// KeySet caches the issuer's JSON Web Key Set.
//
// Reads are lock-free: the current snapshot lives in an atomic.Value and is
// replaced wholesale on refresh. Refreshes are single-flight, so concurrent
// misses trigger at most one fetch. While a refresh is running, readers whose
// kid is present in the previous snapshot keep using it even if it has
// outlived its TTL. A failed fetch is never treated as an empty key set.
type KeySet struct {
	source             KeySource
	ttl                time.Duration
	minRefreshInterval time.Duration
	now                func() time.Time

	snapshot   atomic.Value // Holds *KeySetSnapshot
	refreshing atomic.Bool
	group      singleflight.Group

	// Key ids absent from a freshly fetched set; answered without refetching.
	unknown *expirable.LRU[string, struct{}]
}

// KeySetOption customises a KeySet.
type KeySetOption func(*keySetOptions)

type keySetOptions struct {
	unknownKidTTL      time.Duration
	minRefreshInterval time.Duration
	now                func() time.Time
}

// WithUnknownKidTTL sets how long an unknown key id is remembered.
func WithUnknownKidTTL(ttl time.Duration) KeySetOption {
	return func(o *keySetOptions) {
		if ttl > 0 {
			o.unknownKidTTL = ttl
		}
	}
}

// WithMinRefreshInterval sets the minimum snapshot age before an unknown key
// id may force an early refresh.
func WithMinRefreshInterval(d time.Duration) KeySetOption {
	return func(o *keySetOptions) {
		if d >= 0 {
			o.minRefreshInterval = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) KeySetOption {
	return func(o *keySetOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewKeySet creates an empty cache; the first lookup fetches the keys.
func NewKeySet(source KeySource, ttl time.Duration, opts ...KeySetOption) *KeySet {
	o := keySetOptions{
		unknownKidTTL:      defaultUnknownKidTTL,
		minRefreshInterval: defaultMinRefreshInterval,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = defaultKeySetTTL
	}

	return &KeySet{
		source:             source,
		ttl:                ttl,
		minRefreshInterval: o.minRefreshInterval,
		now:                o.now,
		unknown:            expirable.NewLRU[string, struct{}](unknownKidCacheSize, nil, o.unknownKidTTL),
	}
}

// Get returns the current snapshot, or nil if nothing was fetched yet.
func (k *KeySet) Get() *KeySetSnapshot {
	val := k.snapshot.Load()
	if val == nil {
		return nil
	}
	return val.(*KeySetSnapshot)
}

// Refresh fetches the key set and atomically swaps the snapshot. Concurrent
// callers share one fetch.
func (k *KeySet) Refresh(ctx context.Context) (*KeySetSnapshot, error) {
	// The shared fetch must not die with whichever caller started it.
	fetchCtx := context.WithoutCancel(ctx)

	val, err, _ := k.group.Do("jwks", func() (any, error) {
		k.refreshing.Store(true)
		defer k.refreshing.Store(false)

		set, err := k.source.FetchKeys(fetchCtx)
		if err != nil {
			return nil, err
		}
		if set == nil || len(set.Keys) == 0 {
			return nil, errors.New("key set contains no keys")
		}

		prevVersion := 0
		if prev := k.Get(); prev != nil {
			prevVersion = prev.Version
		}

		snap := &KeySetSnapshot{
			Keys:      *set,
			FetchedAt: k.now(),
			Version:   prevVersion + 1,
		}
		k.snapshot.Store(snap)
		k.unknown.Purge()
		return snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh key set: %w", err)
	}
	return val.(*KeySetSnapshot), nil
}

// Key returns the verification key for kid. It fails with ErrInvalidKeyID
// when the issuer does not publish kid and with ErrKeySetUnavailable when
// the keys cannot be fetched.
func (k *KeySet) Key(ctx context.Context, kid string) (*jose.JSONWebKey, error) {
	snap := k.Get()

	if snap != nil && !k.expired(snap) {
		if key := snap.lookup(kid); key != nil {
			return key, nil
		}
		if k.unknown.Contains(kid) || k.now().Sub(snap.FetchedAt) < k.minRefreshInterval {
			k.unknown.Add(kid, struct{}{})
			return nil, newError(KindInvalidKeyID, fmt.Errorf("no signing key with kid %q", kid))
		}
		// The issuer may have rotated keys since the last fetch.
		return k.refreshAndLookup(ctx, kid)
	}

	if snap != nil && k.refreshing.Load() {
		if key := snap.lookup(kid); key != nil {
			return key, nil
		}
	}

	return k.refreshAndLookup(ctx, kid)
}

func (k *KeySet) refreshAndLookup(ctx context.Context, kid string) (*jose.JSONWebKey, error) {
	snap, err := k.Refresh(ctx)
	if err != nil {
		return nil, newError(KindKeySetUnavailable, err)
	}
	if key := snap.lookup(kid); key != nil {
		return key, nil
	}
	k.unknown.Add(kid, struct{}{})
	return nil, newError(KindInvalidKeyID, fmt.Errorf("no signing key with kid %q", kid))
}

func (k *KeySet) expired(snap *KeySetSnapshot) bool {
	return k.now().Sub(snap.FetchedAt) >= k.ttl
}
