package breeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"spycats/internal/metrics"
)

const DefaultCacheSize = 256

type Options struct {
	// CacheTTL bounds how long an answer is reused. Zero disables the cache.
	CacheTTL  time.Duration
	CacheSize int
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
}

// Validator answers whether a breed name is recognized by the registry.
// Names match case-insensitively and exactly. Answers from successful fetches
// are cached per normalized name; failed fetches are never cached.
type Validator struct {
	registry Registry
	cache    *expirable.LRU[string, bool]
	group    singleflight.Group
	metrics  *metrics.Recorder
	logger   *zap.Logger
}

func NewValidator(registry Registry, opts Options) *Validator {
	v := &Validator{
		registry: registry,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	if opts.CacheTTL > 0 {
		size := opts.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		v.cache = expirable.NewLRU[string, bool](size, nil, opts.CacheTTL)
	}
	return v
}

func normalize(breed string) string {
	return strings.ToLower(breed)
}

// Check reports whether breed is known. A registry failure returns false with an
// error wrapping ErrRegistryUnavailable.
func (v *Validator) Check(ctx context.Context, breed string) (bool, error) {
	key := normalize(breed)
	if key == "" {
		return false, nil
	}
	if v.cache != nil {
		if known, ok := v.cache.Get(key); ok {
			v.metrics.BreedLookup(metrics.LookupHit)
			return known, nil
		}
	}
	names, err := v.fetch(ctx)
	if err != nil {
		v.metrics.BreedLookup(metrics.LookupError)
		v.logger.Warn("breed registry fetch failed", zap.String("breed", breed), zap.Error(err))
		return false, err
	}
	v.metrics.BreedLookup(metrics.LookupMiss)
	_, known := names[key]
	if v.cache != nil {
		v.cache.Add(key, known)
	}
	return known, nil
}

// IsValid is Check with registry failures folded into false.
func (v *Validator) IsValid(ctx context.Context, breed string) bool {
	ok, err := v.Check(ctx, breed)
	return err == nil && ok
}

// fetch collapses concurrent registry calls into one; a caller giving up does not cancel the shared call.
func (v *Validator) fetch(ctx context.Context) (map[string]struct{}, error) {
	ch := v.group.DoChan("breeds", func() (any, error) {
		list, err := v.registry.Breeds(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		names := make(map[string]struct{}, len(list))
		for _, b := range list {
			names[normalize(b.Name)] = struct{}{}
		}
		return names, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]struct{}), nil
	}
}
