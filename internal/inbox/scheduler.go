package inbox

import (
	gosync "sync"
	"time"
)

// Timer is the handle of an armed poll timer.
type Timer interface {
	// Stop disarms the timer. It is safe to call more than once and from
	// within the timer's own callback.
	Stop()
}

// Scheduler arms repeating timers for the inbox poll.
//
// Every must not invoke fn synchronously: the controller arms timers while
// holding its lock.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Timer
}

// TickerScheduler runs each timer on its own goroutine backed by a
// time.Ticker. The callback runs once immediately and then on every tick.
type TickerScheduler struct{}

// Every arms a new ticker-backed timer.
func (TickerScheduler) Every(interval time.Duration, fn func()) Timer {
	t := &tickerTimer{stopCh: make(chan struct{})}
	go t.run(interval, fn)
	return t
}

type tickerTimer struct {
	stopCh chan struct{}
	once   gosync.Once
}

func (t *tickerTimer) run(interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do an initial fetch immediately, unless already disarmed.
	select {
	case <-t.stopCh:
		return
	default:
		fn()
	}

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (t *tickerTimer) Stop() {
	t.once.Do(func() { close(t.stopCh) })
}
