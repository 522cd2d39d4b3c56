// This file implements LFU eviction.

package eviction

// lfuItem tracks how often a key was read and when it was first inserted.
type lfuItem struct {
	freq int
	seq  uint64
}

/*
lfu scans for the lowest frequency on Evict. Shards are small, so a linear
scan keeps the bookkeeping on the hot read path down to one map update.
*/
type lfu struct {
	items map[string]*lfuItem
	seq   uint64
}

func newLFU() *lfu {
	return &lfu{items: make(map[string]*lfuItem)}
}

func (l *lfu) OnGet(key string) {
	if it, ok := l.items[key]; ok {
		it.freq++
	}
}

// OnPut keeps the frequency of a replaced key.
func (l *lfu) OnPut(key string) {
	if _, ok := l.items[key]; ok {
		return
	}
	l.seq++
	l.items[key] = &lfuItem{seq: l.seq}
}

func (l *lfu) Remove(key string) {
	delete(l.items, key)
}

func (l *lfu) Evict() string {
	var (
		victim string
		best   *lfuItem
	)
	for k, it := range l.items {
		if best == nil || it.freq < best.freq || (it.freq == best.freq && it.seq < best.seq) {
			victim, best = k, it
		}
	}
	if best != nil {
		delete(l.items, victim)
	}
	return victim
}

func (l *lfu) Len() int { return len(l.items) }
