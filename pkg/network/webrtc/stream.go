package webrtc

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// RemoteStream is media received from the other side.
// It reads the track until stopped or the connection is closed.
type RemoteStream struct {
	track   *webrtc.TrackRemote
	bytes   atomic.Uint64
	packets atomic.Uint64
	done    chan struct{}
	once    sync.Once
}

func newRemoteStream(track *webrtc.TrackRemote) *RemoteStream {
	return &RemoteStream{track: track, done: make(chan struct{})}
}

func (s *RemoteStream) Id() string { return s.track.StreamID() }

func (s *RemoteStream) Codec() string { return s.track.Codec().MimeType }

func (s *RemoteStream) Bytes() uint64   { return s.bytes.Load() }
func (s *RemoteStream) Packets() uint64 { return s.packets.Load() }

func (s *RemoteStream) Stop() { s.once.Do(func() { close(s.done) }) }

func (s *RemoteStream) drain() {
	buf := make([]byte, 1500)
	for {
		n, _, err := s.track.Read(buf)
		if err != nil {
			return
		}
		s.bytes.Add(uint64(n))
		s.packets.Add(1)
		select {
		case <-s.done:
			return
		default:
		}
	}
}
