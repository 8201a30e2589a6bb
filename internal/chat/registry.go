package chat

import "sync"

// registry - the shared mapping of live sessions and claimed nicknames.
// All mutation happens under the single mutex, so nickname uniqueness checks,
// claims and broadcast snapshots observe a consistent state. The mutex is
// never held across a network write.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	nicks    map[string]string // nickname -> session id
	named    map[string]string // session id -> nickname
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[string]*session),
		nicks:    make(map[string]string),
		named:    make(map[string]string),
	}
}

// register - adds a session with no nickname.
func (r *registry) register(s *session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.id]; ok {
		return ErrSessionExists
	}
	r.sessions[s.id] = s
	return nil
}

// tryClaimNickname - atomically binds nick to the session when nick is free,
// the session is live and holds no name yet. Two concurrent claims of the
// same nickname resolve to exactly one success.
func (r *registry) tryClaimNickname(id, nick string) bool {
	if nick == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	if _, ok := r.named[id]; ok {
		return false
	}
	if _, ok := r.nicks[nick]; ok {
		return false
	}
	r.nicks[nick] = id
	r.named[id] = nick
	return true
}

// unregister - removes the session and frees its nickname in the same
// critical section. Idempotent: only the first call for a live session
// reports the freed nickname, so departure is announced exactly once.
func (r *registry) unregister(id string) (nick string, hadNick bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return "", false
	}
	delete(r.sessions, id)
	if nick, ok := r.named[id]; ok {
		delete(r.named, id)
		delete(r.nicks, nick)
		return nick, true
	}
	return "", false
}

// nickname - the current name of a session, if any.
func (r *registry) nickname(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nick, ok := r.named[id]
	return nick, ok
}

// snapshotOthers - send-paths of every live session except the given one.
// A snapshot member is live at snapshot time but may die before the send;
// the session context covers that window.
func (r *registry) snapshotOthers(id string) []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	others := make([]*session, 0, len(r.sessions))
	for sid, s := range r.sessions {
		if sid != id {
			others = append(others, s)
		}
	}
	return others
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
