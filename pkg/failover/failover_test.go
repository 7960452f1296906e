package failover

import (
	"errors"
	"testing"
	"time"

	"github.com/sempasha/super-dns-lookup/pkg/lookuperr"
)

func TestDefaultPolicy_cachesKnownFailures(t *testing.T) {
	p := DefaultPolicy()

	ttl, ok := p.CacheResolverFailure(lookuperr.New(lookuperr.ServFail), "example.com")
	if !ok {
		t.Fatal("expected ServFail to be cacheable")
	}
	if ttl != time.Second {
		t.Errorf("ttl = %v, want 1s", ttl)
	}
}

func TestDefaultPolicy_unknownCodeNotCached(t *testing.T) {
	p := DefaultPolicy()
	_, ok := p.CacheResolverFailure(errors.New("boom"), "example.com")
	if ok {
		t.Fatal("expected plain error to not be cacheable")
	}
}

func TestDefaultPolicy_useExpiredCache(t *testing.T) {
	p := DefaultPolicy()

	maxExp, ok := p.UseExpiredCache(lookuperr.New(lookuperr.Timeout), "example.com")
	if !ok {
		t.Fatal("expected Timeout to permit stale serving")
	}
	if maxExp != time.Hour {
		t.Errorf("maxExpiration = %v, want 1h", maxExp)
	}

	_, ok = p.UseExpiredCache(lookuperr.New(lookuperr.BadName), "example.com")
	if ok {
		t.Fatal("BadName should not permit stale serving under defaults")
	}
}
