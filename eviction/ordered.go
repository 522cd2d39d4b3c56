// This file implements LRU and FIFO eviction, which differ only in whether
// reads reorder keys.

package eviction

import "container/list"

// ordered keeps keys in a list, front = newest. The back is the next victim.
type ordered struct {
	order       *list.List
	elems       map[string]*list.Element
	touchOnRead bool
}

func newOrdered(touchOnRead bool) *ordered {
	return &ordered{
		order:       list.New(),
		elems:       make(map[string]*list.Element),
		touchOnRead: touchOnRead,
	}
}

func (o *ordered) OnGet(key string) {
	if !o.touchOnRead {
		return
	}
	if el, ok := o.elems[key]; ok {
		o.order.MoveToFront(el)
	}
}

// OnPut treats a replacement as a use for LRU; FIFO keeps the original position.
func (o *ordered) OnPut(key string) {
	if el, ok := o.elems[key]; ok {
		if o.touchOnRead {
			o.order.MoveToFront(el)
		}
		return
	}
	o.elems[key] = o.order.PushFront(key)
}

func (o *ordered) Remove(key string) {
	if el, ok := o.elems[key]; ok {
		o.order.Remove(el)
		delete(o.elems, key)
	}
}

func (o *ordered) Evict() string {
	el := o.order.Back()
	if el == nil {
		return ""
	}
	key := o.order.Remove(el).(string)
	delete(o.elems, key)
	return key
}

func (o *ordered) Len() int { return len(o.elems) }
