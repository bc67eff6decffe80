package service

import (
	"sync"
	"time"
)

// ClockService schedules per-session countdowns. Deadlines are computed from
// time.Now(), whose readings carry a monotonic component, so a system clock
// change during a long session cannot skew the countdown.
type ClockService interface {
	// StartCountdown ticks once per second and fires onExpire exactly once when
	// the duration elapses. Either callback may be nil.
	StartCountdown(duration time.Duration, onTick func(remaining time.Duration), onExpire func()) *CountdownHandle
	// Cancel stops the countdown. Cancelling an expired or already-cancelled
	// handle is a no-op.
	Cancel(handle *CountdownHandle)
}

type CountdownHandle struct {
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

type clockService struct{}

func NewClockService() ClockService {
	return &clockService{}
}

func (s *clockService) StartCountdown(duration time.Duration, onTick func(remaining time.Duration), onExpire func()) *CountdownHandle {
	handle := &CountdownHandle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	deadline := time.Now().Add(duration)

	go func() {
		defer close(handle.done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		expiry := time.NewTimer(duration)
		defer expiry.Stop()

		for {
			select {
			case <-handle.stop:
				return
			case <-expiry.C:
				if onExpire != nil {
					onExpire()
				}
				return
			case <-ticker.C:
				if onTick != nil {
					remaining := time.Until(deadline)
					if remaining < 0 {
						remaining = 0
					}
					onTick(remaining)
				}
			}
		}
	}()

	return handle
}

func (s *clockService) Cancel(handle *CountdownHandle) {
	if handle == nil {
		return
	}
	handle.once.Do(func() {
		close(handle.stop)
	})
}
