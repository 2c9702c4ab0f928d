package poller

import (
	"context"
	"time"
)

type alarmClock struct {
	cancel      func()
	wakeupTimer *time.Ticker
	C           chan time.Time
}

func NewAlarmClock(wakeupInterval time.Duration) *alarmClock {
	return &alarmClock{
		wakeupTimer: time.NewTicker(wakeupInterval),
		C:           make(chan time.Time),
	}
}

func (a *alarmClock) Start(ctx context.Context) <-chan time.Time {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		a.C <- time.Now().UTC()

		for {
			select {
			case t := <-a.wakeupTimer.C:
				a.C <- t.UTC()

			case <-ctx.Done():
				return
			}
		}
	}()

	return a.C
}

func (a *alarmClock) Stop() {
	a.cancel()
	a.wakeupTimer.Stop()
	close(a.C)
}
