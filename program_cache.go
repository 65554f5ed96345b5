package automerge

import (
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ProgramCache stores compiled expression programs keyed by engine, function
// scope and expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// DefaultProgramCacheSize bounds NewLRUProgramCache when a non-positive size is given.
const DefaultProgramCacheSize = 256

type lruProgramCache struct {
	programs *lru.Cache[string, any]
}

// NewLRUProgramCache returns a concurrency-safe ProgramCache that evicts the
// least recently used program once size entries are held.
func NewLRUProgramCache(size int) ProgramCache {
	if size <= 0 {
		size = DefaultProgramCacheSize
	}
	programs, err := lru.New[string, any](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &lruProgramCache{programs: programs}
}

func (c *lruProgramCache) Get(key string) (any, bool) {
	return c.programs.Get(key)
}

func (c *lruProgramCache) Set(key string, value any) {
	c.programs.Add(key, value)
}

// functionScopes hands out one id per WithFunctions call. Engines bake
// registered functions into compiled programs, so programs built against
// different registries must not share a cache entry.
var functionScopes atomic.Uint64

func nextFunctionScope() string {
	return strconv.FormatUint(functionScopes.Add(1), 10)
}

func cacheKey(engine, scope, expression string) string {
	if scope == "" {
		return engine + ":" + expression
	}
	return engine + "@" + scope + ":" + expression
}
