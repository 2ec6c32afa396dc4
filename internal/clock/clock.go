// Package clock abstracts the current time so services can be tested
// against fixed dates and time zones.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time in the ledger's configured location.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the time package, reporting times in loc.
func Real(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return realClock{loc: loc}
}

type realClock struct {
	loc *time.Location
}

func (c realClock) Now() time.Time        { return time.Now().In(c.loc) }
func (c realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a manually advanced Clock. Sleep advances the fake time
// instead of blocking.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake frozen at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(d time.Duration) {
	f.Advance(d)
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set jumps the fake time to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}
