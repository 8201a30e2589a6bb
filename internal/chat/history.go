package chat

// MessageHistory - interface to access the ordered history of encoded chat
// lines. The server pushes every fanned-out chat message and replays the tail
// to sessions right after a successful login.
type MessageHistory interface {
	// Push - push new encoded line into history
	Push(string)
	// Tail - get a number of latest lines from history in chronological order
	Tail(n int) []string
}

func historyPush(h MessageHistory, line string) {
	if h == nil {
		return
	}
	h.Push(line)
}

func historyTail(h MessageHistory, n int) []string {
	if h == nil || n <= 0 {
		return nil
	}
	return h.Tail(n)
}
