package waitingroom

import (
	"sort"
	"sync"
	"time"

	"github.com/lunfardo314/unitrie/common"
	"go.uber.org/atomic"
)

// WaitingRoom calls functions when their time comes. The time is checked every polling period
type WaitingRoom struct {
	mutex   sync.Mutex
	d       map[time.Time][]func()
	period  time.Duration
	stopped atomic.Bool
}

var defaultPollingPeriod = 1 * time.Second

func Create(pollEvery ...time.Duration) *WaitingRoom {
	ret := &WaitingRoom{
		d:      make(map[time.Time][]func()),
		period: defaultPollingPeriod,
	}
	if len(pollEvery) > 0 && pollEvery[0] > 0 {
		ret.period = pollEvery[0]
	}

	go ret.polling()
	return ret
}

func (d *WaitingRoom) polling() {
	for {
		time.Sleep(d.period)

		if d.stopped.Load() {
			return
		}
		for _, fun := range d.takeDue(time.Now()) {
			fun()
		}
	}
}

// takeDue removes and returns due functions in the order of their time
func (d *WaitingRoom) takeDue(nowis time.Time) []func() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	due := make([]time.Time, 0)
	for t := range d.d {
		if !t.After(nowis) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Before(due[j])
	})
	ret := make([]func(), 0)
	for _, t := range due {
		ret = append(ret, d.d[t]...)
		delete(d.d, t)
	}
	return ret
}

func (d *WaitingRoom) Stop() {
	d.stopped.Store(true)
}

func (d *WaitingRoom) WaitUntil(t time.Time, fun func()) {
	common.Assert(!d.stopped.Load(), "WaitingRoom already stopped")

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.d[t] = append(d.d[t], fun)
}

func (d *WaitingRoom) CallDelayed(t time.Duration, fun func()) {
	d.WaitUntil(time.Now().Add(t), fun)
}
