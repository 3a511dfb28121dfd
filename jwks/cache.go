// Package jwks implements the per-issuer JWKS cache: fetch, cache,
// coalesce concurrent refreshes, and penalty-box kids that are
// provably absent. It is the only component in jwtkeys that performs
// I/O.
//
// Per-issuer state lives in a map behind a mutex; a cache miss
// triggers exactly one retry against a freshly fetched document.
// Concurrent callers refreshing the same issuer coalesce into a
// single underlying fetch via golang.org/x/sync/singleflight.
package jwks

import (
	"context"
	"crypto"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"jwtkeys/internal/keymaterial"
	"jwtkeys/jwterr"
)

const (
	defaultPenaltyBoxCapacity = 10
	defaultFetchTimeout       = 3 * time.Second
)

// CacheConfig configures a Cache's resource bounds.
type CacheConfig struct {
	// PenaltyBoxCapacity bounds each issuer's penalty box. Zero means
	// defaultPenaltyBoxCapacity.
	PenaltyBoxCapacity int

	// FetchTimeout bounds how long a single JWKS fetch may run before
	// it is treated as a FetchError. Zero means defaultFetchTimeout.
	FetchTimeout time.Duration

	// Fetcher performs the actual HTTP GET. Defaults to an
	// HTTPFetcher with a bare http.Client if nil.
	Fetcher Fetcher
}

// DefaultCacheConfig returns the package's documented defaults: a
// penalty box capacity of 10 provably-unknown kids per issuer and a
// 3-second fetch timeout.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		PenaltyBoxCapacity: defaultPenaltyBoxCapacity,
		FetchTimeout:       defaultFetchTimeout,
		Fetcher:            NewHTTPFetcher(nil),
	}
}

// entry is the per-issuer cache state: last-good JWKS (if any) and its
// penalty box. inFlight coordination lives in Cache.sf, keyed by
// issuer, rather than on entry itself, since singleflight already
// owns that bookkeeping.
type entry struct {
	doc        *Document
	fetchedAt  time.Time
	penaltyBox *penaltyBox
}

// Cache is a per-issuer JWKS store, safe for concurrent use by
// multiple Verifiers. It owns every Document and penalty box it
// produces; callers hold only a non-owning reference.
type Cache struct {
	cfg CacheConfig

	mu      sync.Mutex
	entries map[string]*entry
	sf      singleflight.Group
}

// NewCache constructs a Cache. A zero CacheConfig is filled in with
// DefaultCacheConfig's values field by field.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.PenaltyBoxCapacity <= 0 {
		cfg.PenaltyBoxCapacity = defaultPenaltyBoxCapacity
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewHTTPFetcher(nil)
	}
	return &Cache{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

func (c *Cache) entryFor(issuer string) *entry {
	e, ok := c.entries[issuer]
	if !ok {
		e = &entry{penaltyBox: newPenaltyBox(c.cfg.PenaltyBoxCapacity)}
		c.entries[issuer] = e
	}
	return e
}

// Peek returns the cached Document for issuer without performing any
// I/O, or nil if none has been fetched yet. Used by the verifier
// façade's synchronous path, which must never block on the network.
func (c *Cache) Peek(issuer string) *Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[issuer]
	if !ok {
		return nil
	}
	return e.doc
}

// GetKey resolves the public key for kid under issuer, fetching and
// caching the JWKS as needed (cache hit, then penalty box, then a
// coalesced refetch, re-checking the fresh document and updating the
// penalty box after), and returns
// the effective algorithm to verify with alongside it: the key's own
// alg field if it set one, otherwise algHint (normally the JWT
// header's alg).
func (c *Cache) GetKey(ctx context.Context, issuer, jwksURI string, kid, algHint string) (crypto.PublicKey, string, error) {
	raw, err := c.resolveJWK(ctx, issuer, jwksURI, kid)
	if err != nil {
		return nil, "", err
	}
	alg, err := keymaterial.EffectiveAlg(raw, algHint)
	if err != nil {
		return nil, "", err
	}
	pub, err := keymaterial.ToPublicKey(raw)
	if err != nil {
		return nil, "", err
	}
	return pub, alg, nil
}

// resolveJWK implements the cache-then-refresh-then-penalize
// algorithm, returning the raw JWK JSON object (not yet converted to
// a native key - ToPublicKey is deferred to GetKey / the verifier's
// synchronous path, which both need the raw-JWK-to-key step
// independently of whether the JWKS came from the cache or a fresh
// fetch).
func (c *Cache) resolveJWK(ctx context.Context, issuer, jwksURI, kid string) (map[string]any, error) {
	c.mu.Lock()
	e := c.entryFor(issuer)

	if e.doc != nil {
		jwk, result := findKey(e.doc, kid)
		switch result {
		case lookupFound:
			c.mu.Unlock()
			return jwk, nil
		case lookupAmbiguous:
			c.mu.Unlock()
			return nil, jwterr.JWKSMultipleKeysFound(issuer, kid)
		}
		// lookupNotFound falls through to the penalty-box / refresh path.
	}

	if e.penaltyBox.Contains(kid) {
		c.mu.Unlock()
		return nil, jwterr.KidNotFoundInJWKS(issuer, kid)
	}
	c.mu.Unlock()

	doc, err := c.refresh(ctx, issuer, jwksURI)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	jwk, result := findKey(doc, kid)
	switch result {
	case lookupFound:
		e.penaltyBox.Remove(kid)
		return jwk, nil
	case lookupAmbiguous:
		return nil, jwterr.JWKSMultipleKeysFound(issuer, kid)
	default:
		e.penaltyBox.Add(kid)
		return nil, jwterr.KidNotFoundInJWKS(issuer, kid)
	}
}

// refresh fetches a fresh Document for issuer, coalescing concurrent
// callers into a single underlying request via singleflight. On
// success the cache entry's Document is replaced; on failure the
// previous good Document (if any) is retained and the error is
// returned to every coalesced caller.
func (c *Cache) refresh(ctx context.Context, issuer, jwksURI string) (*Document, error) {
	v, err, _ := c.sf.Do(issuer, func() (any, error) {
		body, ferr := timeoutFetch(ctx, c.cfg.Fetcher, jwksURI, nil, c.cfg.FetchTimeout)
		if ferr != nil {
			return nil, ferr
		}

		doc, perr := ParseDocument(body)
		if perr != nil {
			return nil, perr
		}

		c.mu.Lock()
		e := c.entryFor(issuer)
		e.doc = doc
		e.fetchedAt = time.Now()
		c.mu.Unlock()

		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

// Purge drops every cached entry for issuer, forcing the next GetKey
// call to refetch. Mainly useful for tests.
func (c *Cache) Purge(issuer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, issuer)
}
