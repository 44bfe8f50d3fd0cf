// Package banner implements the single transient status-message region.
package banner

import (
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/activity-board/internal/model"
)

// DefaultTTL is how long a message stays visible.
const DefaultTTL = 5 * time.Second

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock schedules the hide callback. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Banner holds at most one message. A newer message replaces the current one
// immediately; nothing is queued.
type Banner struct {
	clock Clock
	ttl   time.Duration

	mu       sync.Mutex
	msg      model.Message
	visible  bool
	deadline time.Time
	seq      uint64
	timer    Timer
}

// New constructs a Banner. A nil clock uses the wall clock and a non-positive
// ttl falls back to DefaultTTL.
func New(ttl time.Duration, clock Clock) *Banner {
	if clock == nil {
		clock = realClock{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Banner{clock: clock, ttl: ttl}
}

// Show displays text styled as kind and schedules it to hide after the TTL.
// The hide scheduled by an earlier message is cancelled, so it can never
// hide this one early.
func (b *Banner) Show(text string, kind model.MessageKind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.msg = model.Message{Text: text, Kind: kind}
	b.visible = true
	b.deadline = b.clock.Now().Add(b.ttl)
	b.seq++
	if b.timer != nil {
		b.timer.Stop()
	}
	seq := b.seq
	b.timer = b.clock.AfterFunc(b.ttl, func() { b.expire(seq) })
}

// Current returns the last message and whether it is still visible.
func (b *Banner) Current() (model.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.msg, b.visible
}

// Remaining returns how long the current message stays visible, or zero
// when nothing is shown.
func (b *Banner) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.visible {
		return 0
	}
	if left := b.deadline.Sub(b.clock.Now()); left > 0 {
		return left
	}
	return 0
}

// Close stops any pending hide timer.
func (b *Banner) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// expire hides the banner unless a newer message has been shown since the
// timer for seq was armed. Stop does not guarantee the callback has not
// already started, hence the sequence check.
func (b *Banner) expire(seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.seq {
		return
	}
	b.visible = false
	b.timer = nil
}
