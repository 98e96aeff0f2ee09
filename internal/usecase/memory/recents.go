package memory

import (
	"container/list"
	"sync"
)

// sessionRecents is the process-wide "recent:<tenant>" session LRU named in
// §4.6 step 4 and §5's shared-mutable-state list: one entry per tenant
// holding its most recently ingested content, bounded to maxTenants with
// LRU eviction of the least-recently-touched tenant.
type sessionRecents struct {
	mu         sync.Mutex
	maxTenants int
	order      *list.List
	index      map[string]*list.Element
}

type recentEntry struct {
	tenant  string
	content string
}

func newSessionRecents(maxTenants int) *sessionRecents {
	return &sessionRecents{
		maxTenants: maxTenants,
		order:      list.New(),
		index:      make(map[string]*list.Element),
	}
}

// Touch records content as tenant's most recent memory.
func (r *sessionRecents) Touch(tenant, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.index[tenant]; ok {
		elem.Value.(*recentEntry).content = content
		r.order.MoveToBack(elem)
		return
	}

	elem := r.order.PushBack(&recentEntry{tenant: tenant, content: content})
	r.index[tenant] = elem

	if r.maxTenants > 0 && r.order.Len() > r.maxTenants {
		oldest := r.order.Front()
		r.order.Remove(oldest)
		delete(r.index, oldest.Value.(*recentEntry).tenant)
	}
}

// Get returns tenant's most recently ingested content, if any.
func (r *sessionRecents) Get(tenant string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.index[tenant]
	if !ok {
		return "", false
	}
	r.order.MoveToBack(elem)
	return elem.Value.(*recentEntry).content, true
}
