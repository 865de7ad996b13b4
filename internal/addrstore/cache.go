package addrstore

import (
	"context"

	lru "github.com/hashicorp/golang-lru"

	"github.com/andreabadesso/hathor-wallet-service/internal/sqlutil"
	"github.com/andreabadesso/hathor-wallet-service/modules"
)

// ClaimCache is a shared LRU of address -> claimed wallet. It is built once
// at daemon startup and handed to every CachedStore that gets constructed
// afterwards -- in particular, internal/projector.NewSQLUnitOfWork builds a
// fresh CachedStore around a new *sql.Tx for every single projected event
// (spec §5), so the cache itself has to live outside any one Store for a
// hot address to ever actually serve from cache on the next event.
type ClaimCache struct {
	cache *lru.Cache
}

// NewClaimCache builds a cache holding up to size address-claim entries.
func NewClaimCache(size int) (*ClaimCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ClaimCache{cache: cache}, nil
}

// CachedStore wraps Store with a ClaimCache -- LookupWalletsByAddresses runs
// on step 5 of every single projected event (spec §4.1), so a hot set of
// addresses belonging to active wallets is worth keeping off the database.
// Everything else is inherited from Store unchanged.
type CachedStore struct {
	*Store
	cache *ClaimCache
}

// NewCached wraps q, consulting and invalidating the given shared cache.
func NewCached(q sqlutil.Querier, cache *ClaimCache) *CachedStore {
	return &CachedStore{Store: New(q), cache: cache}
}

// LookupWalletsByAddresses overrides Store's method, serving from cache
// whatever it can and falling back to the database for the rest.
func (s *CachedStore) LookupWalletsByAddresses(ctx context.Context, addresses []string) (map[string]modules.WalletClaim, error) {
	out := make(map[string]modules.WalletClaim)
	var miss []string
	for _, addr := range addresses {
		if v, ok := s.cache.cache.Get(addr); ok {
			out[addr] = v.(modules.WalletClaim)
			continue
		}
		miss = append(miss, addr)
	}
	if len(miss) == 0 {
		return out, nil
	}

	found, err := s.Store.LookupWalletsByAddresses(ctx, miss)
	if err != nil {
		return nil, err
	}
	for _, addr := range miss {
		claim, ok := found[addr]
		if !ok {
			continue
		}
		s.cache.cache.Add(addr, claim)
		out[addr] = claim
	}
	return out, nil
}

// ClaimAddresses overrides Store's method, invalidating any cached entries
// for addresses a new claim might change (re-parenting an address to a
// different wallet is not expected, but a stale cache hit would otherwise
// silently keep serving the old claim).
func (s *CachedStore) ClaimAddresses(ctx context.Context, walletID string, claims []modules.AddressClaim) error {
	if err := s.Store.ClaimAddresses(ctx, walletID, claims); err != nil {
		return err
	}
	for _, c := range claims {
		s.cache.cache.Remove(c.Address)
	}
	return nil
}
