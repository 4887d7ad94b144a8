// Package peer holds the per-student connection state shared by both sides
// of a screen-share: descriptors, the connection table, the transport
// capability interface and the single-goroutine loop that serializes
// every state transition.
package peer

import "errors"

// Id is a participant's connection identity as assigned by the signaling channel.
type Id string

func (id Id) String() string { return string(id) }

// ErrConnectionFailed marks connectivity-class transport errors.
// Only these errors are retried.
var ErrConnectionFailed = errors.New("connection failed")

// Stream is a media stream, either a remote one received by the examiner
// or the local capture of a student.
type Stream interface {
	Id() string
	Stop()
}

// Transport is a point-to-point media connection to one peer.
//
// Signaling payloads are opaque JSON. A transport may produce signals
// before OnSignal is set, these must be queued and flushed on registration.
// Callbacks can be called from any goroutine.
type Transport interface {
	OnSignal(func(signal []byte))
	OnStream(func(Stream))
	OnConnect(func())
	OnError(func(error))
	// Signal applies a signaling payload received from the remote side.
	Signal(signal []byte) error
	// Destroy closes the transport, calling it more than once is a no-op.
	Destroy() error
}

// IsConnectionFailure tells if the error should be handled by reconnecting.
func IsConnectionFailure(err error) bool { return errors.Is(err, ErrConnectionFailed) }
