package cache

import (
	"time"

	"billed/internal/core"
)

// allScope keys the list an admin sees.
const allScope = "*"

// BillLists caches the bill list returned to each viewer.
type BillLists struct {
	lru *LRUCache[[]core.Bill]
}

func NewBillLists(maxViewers int, ttl time.Duration) *BillLists {
	return &BillLists{lru: NewLRUCache[[]core.Bill](maxViewers, ttl)}
}

func scope(viewer core.Session) string {
	if viewer.IsAdmin() {
		return allScope
	}
	return viewer.Email
}

func (b *BillLists) Get(viewer core.Session) ([]core.Bill, bool) {
	return b.lru.Get(scope(viewer))
}

func (b *BillLists) Set(viewer core.Session, bills []core.Bill) {
	b.lru.Set(scope(viewer), bills)
}

// Invalidate drops the lists that include bills owned by email.
func (b *BillLists) Invalidate(owner string) {
	b.lru.Delete(owner)
	b.lru.Delete(allScope)
}

func (b *BillLists) CleanExpired() int { return b.lru.CleanExpired() }

func (b *BillLists) Size() int { return b.lru.Size() }
