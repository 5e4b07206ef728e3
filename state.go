package goSession

// sessionState is the engine's single mutable session. It is only touched with Engine.mu held.
type sessionState struct {
	status Status
	source AuthSource
	user   *User
	// token is the bearer token of an apiToken session, or of a token still being validated
	// during Restoring.
	token string
	epoch uint64
}

func (s sessionState) snapshot() Session {
	snap := Session{
		Source: s.source,
		Status: s.status,
		Epoch:  s.epoch,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s sessionState) activeAPIToken() bool {
	return s.status == StatusActive && s.source == SourceAPIToken
}

// pendingToken reports a bare token whose startup validation was inconclusive.
func (s sessionState) pendingToken() bool {
	return s.status == StatusRestoring && s.token != ""
}

func (s sessionState) activeFederated() bool {
	return s.status == StatusActive && s.source == SourceFederated
}

// canTransition encodes the lifecycle. Unresolved is never re-entered and Restoring is only
// reachable before the first decision.
func canTransition(from, to Status) bool {
	switch to {
	case StatusUnresolved:
		return false
	case StatusRestoring:
		return from == StatusUnresolved || from == StatusRestoring
	case StatusActive, StatusUnauthenticated:
		return true
	}
	return false
}

func activeState(source AuthSource, user *User, token string, epoch uint64) sessionState {
	u := *user
	u.AuthSource = source
	return sessionState{
		status: StatusActive,
		source: source,
		user:   &u,
		token:  token,
		epoch:  epoch,
	}
}

func unauthenticatedState(epoch uint64) sessionState {
	return sessionState{status: StatusUnauthenticated, epoch: epoch}
}

// setLocked moves to next and queues the snapshot for delivery. It reports false and leaves the
// state untouched when the lifecycle forbids the move.
func (e *Engine) setLocked(next sessionState) bool {
	if !canTransition(e.state.status, next.status) {
		e.logger.Error("session transition rejected",
			"from", e.state.status.String(),
			"to", next.status.String(),
		)
		return false
	}
	changed := e.state.status != next.status ||
		e.state.source != next.source ||
		e.state.epoch != next.epoch ||
		!sameUser(e.state.user, next.user)
	e.state = next
	if changed {
		e.queueLocked(next.snapshot())
	}
	return true
}

func sameUser(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// queueLocked offers snap to the Changes channel, dropping the oldest entry when it is full,
// and appends it to the listener queue.
func (e *Engine) queueLocked(snap Session) {
	if e.closed {
		return
	}
	select {
	case e.changes <- snap:
	default:
		select {
		case <-e.changes:
		default:
		}
		select {
		case e.changes <- snap:
		default:
		}
	}
	if len(e.listeners) > 0 {
		e.pending = append(e.pending, snap)
	}
}

// notify delivers queued snapshots to OnChange listeners in transition order. Only one
// goroutine delivers at a time; a listener that changes the session has its snapshot picked up
// by the loop already running.
func (e *Engine) notify() {
	for {
		if !e.notifyMu.TryLock() {
			return
		}
		for {
			e.mu.Lock()
			batch := e.pending
			e.pending = nil
			listeners := e.listeners
			e.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, snap := range batch {
				for _, fn := range listeners {
					fn(snap)
				}
			}
		}
		e.notifyMu.Unlock()

		e.mu.Lock()
		more := len(e.pending) > 0
		e.mu.Unlock()
		if !more {
			return
		}
	}
}
