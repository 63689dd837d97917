package fifoqueue

import (
	"sync"

	"github.com/gammazero/deque"
)

// FIFOQueue implements variable size synchronized FIFO queue.
// Any number of goroutines may write and consume
type FIFOQueue[T any] struct {
	d        *deque.Deque[T]
	mutex    sync.Mutex
	cond     *sync.Cond
	closing  bool
	closeNow bool
}

func New[T any]() *FIFOQueue[T] {
	ret := &FIFOQueue[T]{
		d: new(deque.Deque[T]),
	}
	ret.cond = sync.NewCond(&ret.mutex)
	return ret
}

// Write pushes element
func (q *FIFOQueue[T]) Write(elem T) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closing {
		panic("attempt to write to the closed FIFOQueue")
	}
	q.d.PushBack(elem)
	q.cond.Signal()
}

// CloseNow closes FIFOQueue immediately. The elements in the buffer are not consumed anymore
func (q *FIFOQueue[T]) CloseNow() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.closing = true
	q.closeNow = true
	q.cond.Broadcast()
}

// Close closes FIFOQueue deferred until all elements are read
func (q *FIFOQueue[T]) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.closing = true
	q.cond.Broadcast()
}

// read blocks until element is available or the queue is closed
func (q *FIFOQueue[T]) read() (T, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for q.d.Len() == 0 && !q.closing {
		q.cond.Wait()
	}
	if q.closeNow || q.d.Len() == 0 {
		var nilT T
		return nilT, false
	}
	return q.d.PopFront(), true
}

// Consume reads all elements of the queue until it is closed
func (q *FIFOQueue[T]) Consume(fun func(elem T)) {
	for {
		e, ok := q.read()
		if !ok {
			break
		}
		fun(e)
	}
}

// Len returns number of elements in the queue. Non-deterministic
func (q *FIFOQueue[T]) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.d.Len()
}
