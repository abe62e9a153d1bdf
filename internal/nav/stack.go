package nav

import (
	"log/slog"
	"sync"
)

// LeaveFunc releases resources owned by a screen when it is removed from the
// stack. This is the only cancellation path for screen-owned engines and
// speech sessions: the router never times anything out on its own.
type LeaveFunc func()

// entry pairs a descriptor with its optional cleanup hook.
type entry struct {
	desc    Descriptor
	onLeave LeaveFunc
}

// Stack is the navigation back-stack. Insertion order is visual back-stack
// order and the last element is the active screen. The stack is never empty
// while the app is running: Pop at depth one degrades to a no-op.
type Stack struct {
	mu       sync.Mutex
	entries  []entry
	onChange func(Descriptor)
}

// NewStack creates a stack holding only the given root descriptor.
func NewStack(root Descriptor) *Stack {
	slog.Debug("Stack created", "root", root.Screen)
	return &Stack{entries: []entry{{desc: root}}}
}

// SetOnChange registers a listener invoked with the new active descriptor
// after every mutation. The rendering layer is the intended consumer.
func (s *Stack) SetOnChange(fn func(Descriptor)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Push appends the descriptor, making it the active screen.
func (s *Stack) Push(d Descriptor) {
	s.PushWithCleanup(d, nil)
}

// PushWithCleanup appends the descriptor and registers a hook that runs
// exactly once when the entry is removed (by Pop, ReplaceTop or ResetTo).
// A descriptor with an unknown screen tag is refused.
func (s *Stack) PushWithCleanup(d Descriptor, onLeave LeaveFunc) {
	if !IsValidScreen(d.Screen) {
		slog.Warn("Stack push refused, unknown screen", "screen", d.Screen)
		return
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry{desc: d, onLeave: onLeave})
	notify, top := s.changedLocked()
	s.mu.Unlock()

	slog.Debug("Stack push", "screen", d.Screen, "depth", s.Depth())
	if notify != nil {
		notify(top)
	}
}

// Pop removes the active screen if more than one entry remains. At depth one
// it is a silent no-op so a root screen always exists.
func (s *Stack) Pop() {
	s.mu.Lock()
	if len(s.entries) <= 1 {
		s.mu.Unlock()
		slog.Debug("Stack pop ignored at root")
		return
	}
	leaving := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	notify, top := s.changedLocked()
	s.mu.Unlock()

	slog.Debug("Stack pop", "screen", leaving.desc.Screen, "depth", s.Depth())
	runLeave(leaving)
	if notify != nil {
		notify(top)
	}
}

// ReplaceTop swaps the active screen in one atomic step, so a transitional
// screen (e.g. splash) is not reachable by back-navigation.
func (s *Stack) ReplaceTop(d Descriptor) {
	s.ReplaceTopWithCleanup(d, nil)
}

// ReplaceTopWithCleanup is ReplaceTop with a cleanup hook for the new entry.
func (s *Stack) ReplaceTopWithCleanup(d Descriptor, onLeave LeaveFunc) {
	if !IsValidScreen(d.Screen) {
		slog.Warn("Stack replaceTop refused, unknown screen", "screen", d.Screen)
		return
	}
	s.mu.Lock()
	leaving := s.entries[len(s.entries)-1]
	s.entries[len(s.entries)-1] = entry{desc: d, onLeave: onLeave}
	notify, top := s.changedLocked()
	s.mu.Unlock()

	slog.Debug("Stack replaceTop", "old", leaving.desc.Screen, "new", d.Screen)
	runLeave(leaving)
	if notify != nil {
		notify(top)
	}
}

// ResetTo clears the stack and pushes the descriptor as the new root. Used
// after irreversible transitions (login, logout, account deletion) so back
// navigation cannot return to pre-transition screens.
func (s *Stack) ResetTo(d Descriptor) {
	s.ResetToWithCleanup(d, nil)
}

// ResetToWithCleanup is ResetTo with a cleanup hook for the new root.
func (s *Stack) ResetToWithCleanup(d Descriptor, onLeave LeaveFunc) {
	if !IsValidScreen(d.Screen) {
		slog.Warn("Stack resetTo refused, unknown screen", "screen", d.Screen)
		return
	}
	s.mu.Lock()
	removed := s.entries
	s.entries = []entry{{desc: d, onLeave: onLeave}}
	notify, top := s.changedLocked()
	s.mu.Unlock()

	slog.Debug("Stack resetTo", "screen", d.Screen, "removed", len(removed))
	// Leave hooks run top-down, mirroring the order repeated pops would use.
	for i := len(removed) - 1; i >= 0; i-- {
		runLeave(removed[i])
	}
	if notify != nil {
		notify(top)
	}
}

// Current returns the active screen descriptor.
func (s *Stack) Current() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[len(s.entries)-1].desc
}

// Depth returns the number of screens on the stack.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// CanGoBack reports whether a back gesture should be intercepted. The global
// back handler is enabled iff the stack depth is greater than one.
func (s *Stack) CanGoBack() bool {
	return s.Depth() > 1
}

// HandleBack applies the back-gesture policy: pop when possible, otherwise
// leave the stack untouched. Returns true if the gesture was consumed.
func (s *Stack) HandleBack() bool {
	if !s.CanGoBack() {
		return false
	}
	s.Pop()
	return true
}

// Screens returns a copy of the stack contents in back-stack order, for
// inspection by the rendering layer and tests.
func (s *Stack) Screens() []Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Descriptor, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.desc
	}
	return out
}

// changedLocked snapshots the change listener and the new top while the lock
// is held, so the callback can run outside of it.
func (s *Stack) changedLocked() (func(Descriptor), Descriptor) {
	return s.onChange, s.entries[len(s.entries)-1].desc
}

func runLeave(e entry) {
	if e.onLeave == nil {
		return
	}
	e.onLeave()
}
