package priorityqueue

type Item struct {
	Value    interface{} // The value of the item; arbitrary.
	Key      string
	Priority int64 // The priority of the item in the queue.
	Index    int   // The index of the item in the heap.
}

// A PriorityQueue implements heap.Interface and holds Items. The item with
// the smallest Priority sits at the root.
type PriorityQueue []*Item

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	return pq[i].Priority < pq[j].Priority
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*Item)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.Index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// Peek returns the item with the smallest priority without removing it, or
// nil on an empty queue.
func (pq PriorityQueue) Peek() *Item {
	if len(pq) == 0 {
		return nil
	}
	return pq[0]
}
