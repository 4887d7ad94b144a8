package peer

import "fmt"

type State uint8

const (
	Connecting State = iota
	Streaming
	Retrying
	Failed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Retrying:
		return "retrying"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Participant is the display identity of a peer.
// Provisional info is synthesized when the roster doesn't know the peer yet.
type Participant struct {
	Name        string `json:"name"`
	StudentId   string `json:"sid"`
	Provisional bool   `json:"provisional,omitempty"`
}

// Placeholder makes a provisional participant from an external student id.
func Placeholder(studentId string) Participant {
	return Participant{Name: "Student " + studentId, StudentId: studentId, Provisional: true}
}

// Descriptor is the state of one student-examiner link.
// The transport handle is owned by the descriptor and never leaves it.
type Descriptor struct {
	Id        Id          `json:"id"`
	Info      Participant `json:"info"`
	Stream    Stream      `json:"-"`
	Retries   int         `json:"retries"`
	State     State       `json:"state"`
	Connected bool        `json:"connected"`

	transport Transport
	attempt   uint64
}

func NewDescriptor(id Id, info Participant, t Transport, attempt uint64) *Descriptor {
	return &Descriptor{Id: id, Info: info, transport: t, attempt: attempt}
}

func (d *Descriptor) Transport() Transport { return d.transport }

// Attempt identifies the transport generation the descriptor was built for.
func (d *Descriptor) Attempt() uint64 { return d.attempt }

func (d *Descriptor) IsStreaming() bool { return d.Stream != nil }

// Detach takes the transport away from the descriptor without destroying it.
func (d *Descriptor) Detach() Transport {
	t := d.transport
	d.transport = nil
	return t
}

// Release detaches the transport from the descriptor and destroys it.
// It is safe to call on a descriptor without a transport.
func (d *Descriptor) Release() error {
	if t := d.Detach(); t != nil {
		return t.Destroy()
	}
	return nil
}

// view is a copy without the transport.
func (d *Descriptor) view() Descriptor {
	v := *d
	v.transport = nil
	return v
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s[%s/%d]", d.Id, d.State, d.Retries)
}
