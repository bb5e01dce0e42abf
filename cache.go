// seehuhn.de/go/pdfcore - a library for reading PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pdfcore

import "container/list"

// lruCache holds the most recently used values, keyed by reference.  The
// Reader keeps decoded object streams in it.  A capacity of zero or less
// disables the cache.
type lruCache[V any] struct {
	capacity int
	order    *list.List // front is the most recently used entry
	index    map[Reference]*list.Element
}

type cacheItem[V any] struct {
	key Reference
	val V
}

func newCache[V any](capacity int) *lruCache[V] {
	return &lruCache[V]{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[Reference]*list.Element, max(capacity, 0)),
	}
}

// Put stores val under key, evicting the least recently used value if the
// cache is full.
func (c *lruCache[V]) Put(key Reference, val V) {
	if c.capacity <= 0 {
		return
	}
	if el, ok := c.index[key]; ok {
		el.Value.(*cacheItem[V]).val = val
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(&cacheItem[V]{key: key, val: val})
	for c.order.Len() > c.capacity {
		oldest := c.order.Remove(c.order.Back()).(*cacheItem[V])
		delete(c.index, oldest.key)
	}
}

// Get looks up key and marks the entry as recently used.
func (c *lruCache[V]) Get(key Reference) (V, bool) {
	el, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheItem[V]).val, true
}

// Has is like Get, but leaves the usage order unchanged.
func (c *lruCache[V]) Has(key Reference) bool {
	_, ok := c.index[key]
	return ok
}

func (c *lruCache[V]) Len() int {
	return c.order.Len()
}
