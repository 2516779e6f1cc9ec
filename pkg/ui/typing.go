package ui

import (
	"sort"
	"strings"
	"time"
)

const (
	typingTTL      = 3 * time.Second
	typingInterval = time.Second
)

// typingRegistry tracks who is typing right now. Each typing event
// refreshes the sender's deadline; entries expire after typingTTL
// without a refresh, so there is at most one indicator per user.
type typingRegistry struct {
	deadlines map[string]time.Time
}

func newTypingRegistry() *typingRegistry {
	return &typingRegistry{deadlines: map[string]time.Time{}}
}

func (r *typingRegistry) Mark(username string, now time.Time) {
	r.deadlines[username] = now.Add(typingTTL)
}

func (r *typingRegistry) Clear(username string) {
	delete(r.deadlines, username)
}

func (r *typingRegistry) Prune(now time.Time) {
	for name, deadline := range r.deadlines {
		if now.After(deadline) {
			delete(r.deadlines, name)
		}
	}
}

func (r *typingRegistry) Active(now time.Time) []string {
	names := make([]string, 0, len(r.deadlines))
	for name, deadline := range r.deadlines {
		if !now.After(deadline) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Line renders the indicator text, or "" when nobody is typing.
func (r *typingRegistry) Line(now time.Time) string {
	names := r.Active(now)
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing…"
	default:
		return strings.Join(names, ", ") + " are typing…"
	}
}

// throttle is a leading-edge rate limiter for outbound typing events:
// the first keystroke emits immediately, further ones are suppressed
// until the interval has passed.
type throttle struct {
	until time.Time
}

func newThrottle() *throttle {
	return &throttle{}
}

func (th *throttle) Allow(now time.Time) bool {
	if now.Before(th.until) {
		return false
	}
	th.until = now.Add(typingInterval)
	return true
}
