package queue

import (
	"sync"

	"github.com/google/btree"
)

// Item is a merge candidate between the part starting at Left and its right neighbour.
type Item struct {
	Delta float64
	Left  int
}

// Less orders by delta cost, then by position so equal deltas merge left first.
func (i Item) Less(than btree.Item) bool {
	o := than.(Item)
	if i.Delta != o.Delta {
		return i.Delta < o.Delta
	}
	return i.Left < o.Left
}

// Queue keeps merge candidates ordered by delta cost.
type Queue struct {
	tree *btree.BTree
	lock sync.RWMutex
}

func New(degree int) *Queue {
	return &Queue{
		tree: btree.New(degree),
	}
}

func (q *Queue) Put(item Item) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.tree.ReplaceOrInsert(item)
}

// Delete removes item and reports whether it was present.
func (q *Queue) Delete(item Item) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.tree.Delete(item) != nil
}

// Min returns the best candidate without removing it.
func (q *Queue) Min() (Item, bool) {
	q.lock.RLock()
	defer q.lock.RUnlock()

	res := q.tree.Min()
	if res == nil {
		return Item{}, false
	}
	return res.(Item), true
}
