package chart

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/matzehuels/famtree/pkg/cache"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/pipeline"
)

// DefaultResultCacheSize is the number of laid out charts a dispatcher keeps.
const DefaultResultCacheSize = 128

// resultCache keeps the last pipeline result of each chart revision so a
// state reloaded from a session store is drawn without another layout.
// Entries are shared between requests and never modified.
type resultCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func newResultCache(size int) *resultCache {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	return &resultCache{lru: lru.New(size)}
}

// resultKey names a chart revision. The digest tells apart two requests that
// expanded the same stale revision in different ways.
func resultKey(st *State) string {
	return st.ID + ":" + strconv.Itoa(st.Revision) + ":" + st.Digest
}

func (c *resultCache) get(st *State) (*pipeline.Result, bool) {
	if st.Digest == "" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(resultKey(st))
	if !ok {
		return nil, false
	}
	return v.(*pipeline.Result), true
}

func (c *resultCache) put(st *State) {
	if st.current == nil || st.Digest == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(resultKey(st), st.current)
}

// digest hashes the payload a chart was laid out from.
func digest(p payload.Payload) string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return cache.Hash(data)
}
