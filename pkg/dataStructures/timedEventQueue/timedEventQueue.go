// Package timedEventQueue schedules items by deadline on a single goroutine.
// When an item's deadline passes its OnTrigger is invoked; the item may ask to
// be re-armed with a new deadline, which is how periodic timers repeat.
package timedEventQueue

import (
	"container/heap"
	"time"

	priorityqueue "github.com/ravasco/go-devboard/pkg/dataStructures/priorityQueue"
	"github.com/sirupsen/logrus"
)

type TimedEventQueue interface {
	Add(item Item, deadline time.Time)
	Remove(string) bool
}

type Item interface {
	ID() string
	OnTrigger() (reAdd bool, nextDeadline *time.Time)
}

type removeItemReq struct {
	key      string
	respChan chan bool
}

type addItemReq struct {
	item     Item
	deadline time.Time
}

type timedEventQueue struct {
	pq                   *priorityqueue.PriorityQueue
	addTimedEventChan    chan addItemReq
	removeTimedEventChan chan removeItemReq
	logger               *logrus.Logger
}

func NewTimedEventQueue(logger *logrus.Logger) TimedEventQueue {
	tq := &timedEventQueue{
		pq:                   &priorityqueue.PriorityQueue{},
		addTimedEventChan:    make(chan addItemReq, 5),
		removeTimedEventChan: make(chan removeItemReq, 5),
		logger:               logger,
	}
	go tq.run()
	return tq
}

func (tq *timedEventQueue) Add(item Item, deadline time.Time) {
	tq.addTimedEventChan <- addItemReq{
		item:     item,
		deadline: deadline,
	}
}

func (tq *timedEventQueue) Remove(itemID string) bool {
	req := removeItemReq{
		key:      itemID,
		respChan: make(chan bool),
	}
	tq.removeTimedEventChan <- req
	return <-req.respChan
}

func (tq *timedEventQueue) removeByKey(key string) bool {
	for idx, entry := range *tq.pq {
		if entry.Key == key {
			heap.Remove(tq.pq, idx)
			return true
		}
	}
	return false
}

func (tq *timedEventQueue) run() {
	fireTimer := time.NewTimer(0)
	if !fireTimer.Stop() {
		<-fireTimer.C
	}

	for {
		var fireChan <-chan time.Time
		armed := false
		if next := tq.pq.Peek(); next != nil {
			fireTimer.Reset(time.Until(time.Unix(0, next.Priority)))
			fireChan = fireTimer.C
			armed = true
		}

		select {
		case req := <-tq.addTimedEventChan:
			heap.Push(tq.pq, &priorityqueue.Item{
				Value:    req.item,
				Key:      req.item.ID(),
				Priority: req.deadline.UnixNano(),
			})
		case req := <-tq.removeTimedEventChan:
			found := tq.removeByKey(req.key)
			if !found {
				tq.logger.Warnf("Removing item %s failure: not found", req.key)
			}
			req.respChan <- found
		case <-fireChan:
			armed = false
			entry := heap.Pop(tq.pq).(*priorityqueue.Item)
			if reAdd, nextDeadline := entry.Value.(Item).OnTrigger(); reAdd && nextDeadline != nil {
				entry.Priority = nextDeadline.UnixNano()
				heap.Push(tq.pq, entry)
			}
		}

		if armed && !fireTimer.Stop() {
			select {
			case <-fireTimer.C:
			default:
			}
		}
	}
}
