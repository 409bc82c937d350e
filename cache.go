package storedb

import (
	"container/list"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// RowSet is a fully materialized, driver-independent query result.
// Cached entries hold snapshots like this one, never live rows or statement
// handles.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// Clone deep-copies the row data so cached snapshots cannot be mutated
// through a returned result.
func (rs *RowSet) Clone() *RowSet {
	if rs == nil {
		return nil
	}
	out := &RowSet{
		Columns: append([]string(nil), rs.Columns...),
		Rows:    make([][]any, len(rs.Rows)),
	}
	for i, r := range rs.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}

// Len returns the number of rows.
func (rs *RowSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// fingerprint derives a stable cache key from statement text and bound
// parameters.
func fingerprint(query string, args []any) string {
	var b strings.Builder
	b.WriteString(query)
	for _, a := range args {
		b.WriteByte(0)
		fmt.Fprintf(&b, "%T=%v", a, a)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

// resultCache is a bounded, insertion-ordered cache of read-only results.
// Eviction is strictly oldest-inserted-first; a refresh of an existing key
// keeps its original position.
type resultCache struct {
	cap int
	mu  sync.Mutex
	ll  *list.List // front = oldest inserted
	m   map[string]*list.Element
}

type cacheEntry struct {
	key      string
	snapshot *RowSet
}

func newResultCache(capacity int) *resultCache {
	if capacity < 0 {
		capacity = 0
	}
	return &resultCache{cap: capacity, ll: list.New(), m: make(map[string]*list.Element)}
}

func (c *resultCache) get(key string) (*RowSet, bool) {
	if c == nil || c.cap == 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ele, ok := c.m[key]
	if !ok {
		return nil, false
	}
	return ele.Value.(*cacheEntry).snapshot.Clone(), true
}

func (c *resultCache) put(key string, snapshot *RowSet) {
	if c == nil || c.cap == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.m[key]; ok {
		ele.Value.(*cacheEntry).snapshot = snapshot.Clone()
		return
	}
	ele := c.ll.PushBack(&cacheEntry{key: key, snapshot: snapshot.Clone()})
	c.m[key] = ele
	for c.ll.Len() > c.cap {
		c.evictOldest()
	}
}

func (c *resultCache) evictOldest() {
	front := c.ll.Front()
	if front == nil {
		return
	}
	c.ll.Remove(front)
	delete(c.m, front.Value.(*cacheEntry).key)
}

func (c *resultCache) clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	for k := range c.m {
		delete(c.m, k)
	}
}

func (c *resultCache) size() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
