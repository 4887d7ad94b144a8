package examiner

import (
	"sync"
	"time"

	"github.com/giongto35/proctor/pkg/peer"
	"github.com/goccy/go-json"
)

type EventKind uint8

const (
	PeerAdded EventKind = iota
	PeerConnected
	PeerStreaming
	PeerRetrying
	PeerFailed
	PeerWarning
	PeerLeft
	PeerRemoved
	PeerFlagged
)

func (k EventKind) String() string {
	switch k {
	case PeerAdded:
		return "added"
	case PeerConnected:
		return "connected"
	case PeerStreaming:
		return "streaming"
	case PeerRetrying:
		return "retrying"
	case PeerFailed:
		return "failed"
	case PeerWarning:
		return "warning"
	case PeerLeft:
		return "left"
	case PeerRemoved:
		return "removed"
	case PeerFlagged:
		return "flagged"
	default:
		return "unknown"
	}
}

// Event is a user-visible notification about a tracked peer.
type Event struct {
	Kind    EventKind
	Peer    peer.Id
	Info    peer.Participant
	Attempt int
	Err     error
	Note    string
	At      time.Time
}

func (e Event) MarshalJSON() ([]byte, error) {
	var msg string
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Kind    string           `json:"kind"`
		Peer    peer.Id          `json:"peer"`
		Info    peer.Participant `json:"info"`
		Attempt int              `json:"attempt,omitempty"`
		Err     string           `json:"error,omitempty"`
		Note    string           `json:"note,omitempty"`
		At      time.Time        `json:"at"`
	}{e.Kind.String(), e.Peer, e.Info, e.Attempt, msg, e.Note, e.At})
}

// Journal keeps the most recent events.
type Journal struct {
	buf  []Event
	next int
	full bool
	mu   sync.Mutex
}

func NewJournal(size int) *Journal {
	if size < 1 {
		size = 1
	}
	return &Journal{buf: make([]Event, size)}
}

func (j *Journal) Add(e Event) {
	j.mu.Lock()
	j.buf[j.next] = e
	j.next = (j.next + 1) % len(j.buf)
	if j.next == 0 {
		j.full = true
	}
	j.mu.Unlock()
}

// List returns events from the oldest to the newest.
func (j *Journal) List() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.full {
		return append([]Event(nil), j.buf[:j.next]...)
	}
	out := make([]Event, 0, len(j.buf))
	out = append(out, j.buf[j.next:]...)
	return append(out, j.buf[:j.next]...)
}
