// Package student answers the examiner's connection attempts with the
// student's local screen.
//
// A student never initiates: the transport is created lazily on the first
// inbound signal after the capture has started. Only one transport exists
// at a time and failed transports are not retried locally, the examiner
// reconnects instead.
package student

import (
	"errors"
	"time"

	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/peer"
)

var (
	ErrExamNotStarted = errors.New("exam is not started")
	ErrCapturing      = errors.New("already capturing")
	ErrClosed         = errors.New("closed")
)

// Channel is the student's side of the room channel.
type Channel interface {
	SendSignal(to peer.Id, signal []byte) error
	StartedSharing() error
	StoppedSharing() error
	Flag(site string, at time.Time) error
}

// Factory makes a responding transport that sends the local stream.
type Factory func(local peer.Stream) (peer.Transport, error)

type Status struct {
	Exam      bool
	Capturing bool
	Transport bool
	Connected bool
	Examiner  peer.Id
}

type Manager struct {
	loop    *peer.Loop
	channel Channel
	factory Factory
	restart func([]byte) bool

	// loop-owned
	exam      bool
	local     peer.Stream
	transport peer.Transport
	connected bool
	examiner  peer.Id
	attempt   uint64
	closed    bool

	log *logger.Logger
}

type Option func(*Manager)

func WithLogger(log *logger.Logger) Option { return func(m *Manager) { m.log = log } }

// WithRestart sets a check for payloads that start a new session,
// e.g. an offer from a reconnecting examiner. Such payloads replace
// the existing transport.
func WithRestart(fn func(payload []byte) bool) Option { return func(m *Manager) { m.restart = fn } }

func New(channel Channel, factory Factory, opts ...Option) *Manager {
	m := &Manager{loop: peer.NewLoop(), channel: channel, factory: factory}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Default()
	}
	m.loop.Start()
	return m
}

// HandleExamStart allows the capture.
func (m *Manager) HandleExamStart() {
	m.loop.Post(func() {
		m.exam = true
		m.log.Info().Msg("exam started")
	})
}

// HandleExamEnd stops the capture and forbids a new one.
func (m *Manager) HandleExamEnd() {
	m.loop.Post(func() {
		m.exam = false
		m.stopCapture()
		m.log.Info().Msg("exam ended")
	})
}

// StartCapture makes the stream available to the examiner
// and announces it to the room.
func (m *Manager) StartCapture(local peer.Stream) error {
	err := ErrClosed
	m.loop.Do(func() { err = m.startCapture(local) })
	return err
}

// StopCapture closes the transport and stops the local stream.
func (m *Manager) StopCapture() { m.loop.Do(m.stopCapture) }

// HandleInboundSignal applies a signaling payload from the examiner.
// Payloads are dropped while nothing is captured.
func (m *Manager) HandleInboundSignal(from peer.Id, payload []byte) {
	m.loop.Post(func() { m.inboundSignal(from, payload) })
}

// ReportFlag tells the examiner about a disallowed site.
func (m *Manager) ReportFlag(site string) error {
	return m.channel.Flag(site, time.Now())
}

func (m *Manager) Status() (s Status) {
	m.loop.Do(func() {
		s = Status{
			Exam:      m.exam,
			Capturing: m.local != nil,
			Transport: m.transport != nil,
			Connected: m.connected,
			Examiner:  m.examiner,
		}
	})
	return
}

func (m *Manager) Flush() { m.loop.Flush() }

func (m *Manager) Close() {
	m.loop.Do(func() { m.stopCapture(); m.closed = true })
	m.loop.Stop()
}

func (m *Manager) startCapture(local peer.Stream) error {
	if m.closed {
		return ErrClosed
	}
	if !m.exam {
		return ErrExamNotStarted
	}
	if m.local != nil {
		return ErrCapturing
	}
	m.local = local
	m.log.Info().Str("stream", local.Id()).Msg("sharing the screen")
	if err := m.channel.StartedSharing(); err != nil {
		m.log.Warn().Err(err).Msg("couldn't announce sharing")
	}
	return nil
}

func (m *Manager) stopCapture() {
	if m.local == nil {
		return
	}
	m.release("capture stop")
	m.local.Stop()
	m.local = nil
	if err := m.channel.StoppedSharing(); err != nil {
		m.log.Warn().Err(err).Msg("couldn't announce the sharing stop")
	}
	m.log.Info().Msg("stopped sharing")
}

func (m *Manager) inboundSignal(from peer.Id, payload []byte) {
	if m.local == nil {
		m.log.Debug().Str(logger.PeerField, from.String()).Msg("signal dropped, not capturing")
		return
	}
	m.examiner = from
	if m.transport != nil && m.restart != nil && m.restart(payload) {
		m.release("new session")
	}
	if m.transport == nil {
		tr, err := m.factory(m.local)
		if err != nil {
			m.log.Error().Err(err).Msg("couldn't create transport")
			return
		}
		m.attempt++
		m.transport = tr
		m.bind(tr, m.attempt)
		m.log.Debug().Uint64("attempt", m.attempt).Msg("transport created")
	}
	if err := m.transport.Signal(payload); err != nil {
		m.log.Warn().Err(err).Msg("signal apply fail")
	}
}

func (m *Manager) bind(tr peer.Transport, attempt uint64) {
	tr.OnSignal(func(s []byte) {
		m.loop.Post(func() {
			if attempt != m.attempt || m.transport == nil {
				return
			}
			if err := m.channel.SendSignal(m.examiner, s); err != nil {
				m.log.Warn().Err(err).Msg("signal relay fail")
			}
		})
	})
	tr.OnConnect(func() {
		m.loop.Post(func() {
			if attempt == m.attempt && m.transport != nil {
				m.connected = true
				m.log.Info().Str(logger.PeerField, m.examiner.String()).Msg("connected to the examiner")
			}
		})
	})
	// the examiner sends nothing back
	tr.OnStream(func(s peer.Stream) { s.Stop() })
	tr.OnError(func(err error) {
		m.loop.Post(func() {
			if attempt != m.attempt || m.transport == nil {
				return
			}
			m.log.Error().Err(err).Msg("transport error")
			if peer.IsConnectionFailure(err) {
				m.release("connection failed")
			}
		})
	})
}

func (m *Manager) release(reason string) {
	if m.transport == nil {
		return
	}
	tr := m.transport
	m.transport = nil
	m.connected = false
	if err := tr.Destroy(); err != nil {
		m.log.Warn().Err(err).Msg("transport destroy")
	}
	m.log.Debug().Msgf("transport released: %v", reason)
}
