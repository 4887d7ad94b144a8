// Package examiner tracks the screen-sharing connections of every student
// in a room from the examiner's side.
//
// The manager initiates one transport per sharing student, relays its
// signaling over the room channel and reconnects after connectivity failures
// up to a fixed number of attempts. All state transitions happen on a single
// loop goroutine, public methods only post work to it.
package examiner

import (
	"fmt"
	"time"

	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/peer"
	"github.com/hashicorp/go-multierror"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second
)

// Relay delivers signaling payloads to students.
type Relay interface {
	SendSignal(to peer.Id, signal []byte) error
}

// Factory makes a new initiating transport for the peer.
type Factory func(id peer.Id) (peer.Transport, error)

type Manager struct {
	table   *peer.Table
	loop    *peer.Loop
	relay   Relay
	factory Factory
	sched   peer.Scheduler

	maxRetries int
	backoff    time.Duration

	// loop-owned
	roster  map[peer.Id]peer.Participant
	timers  map[peer.Id]peer.Timer
	attempt uint64
	closed  bool

	listeners []func(Event)
	metrics   *Metrics
	log       *logger.Logger
}

type Option func(*Manager)

func WithRetry(retries int, backoff time.Duration) Option {
	return func(m *Manager) {
		if retries >= 0 {
			m.maxRetries = retries
		}
		if backoff > 0 {
			m.backoff = backoff
		}
	}
}

func WithScheduler(s peer.Scheduler) Option { return func(m *Manager) { m.sched = s } }
func WithLogger(log *logger.Logger) Option  { return func(m *Manager) { m.log = log } }
func WithMetrics(metrics *Metrics) Option   { return func(m *Manager) { m.metrics = metrics } }

// WithListener adds a notification callback.
// Listeners are called on the manager loop and must not block.
func WithListener(fn func(Event)) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, fn) }
}

func New(relay Relay, factory Factory, opts ...Option) *Manager {
	m := &Manager{
		table:      peer.NewTable(),
		loop:       peer.NewLoop(),
		relay:      relay,
		factory:    factory,
		sched:      peer.Clock,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		roster:     make(map[peer.Id]peer.Participant),
		timers:     make(map[peer.Id]peer.Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Default()
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	m.loop.Start()
	return m
}

// HandleStudentStartedSharing starts tracking the peer.
// It does nothing if the peer is already tracked.
func (m *Manager) HandleStudentStartedSharing(id peer.Id, studentId string) {
	m.loop.Post(func() { m.startSharing(id, studentId) })
}

// HandleStudentStoppedSharing drops the connection but keeps the student in the roster.
func (m *Manager) HandleStudentStoppedSharing(id peer.Id) {
	m.loop.Post(func() {
		if d, ok := m.teardown(id); ok {
			m.emit(Event{Kind: PeerRemoved, Peer: id, Info: d.Info})
		}
	})
}

// HandleInboundSignal applies a signaling payload from the student to its transport.
// Payloads for untracked or reconnecting peers are dropped.
func (m *Manager) HandleInboundSignal(id peer.Id, payload []byte) {
	m.loop.Post(func() { m.inboundSignal(id, payload) })
}

// HandleStudentLeft tears the peer down and notifies about the departure.
func (m *Manager) HandleStudentLeft(id peer.Id) {
	m.loop.Post(func() {
		info, known := m.roster[id]
		delete(m.roster, id)
		if d, ok := m.teardown(id); ok {
			info, known = d.Info, true
		}
		if !known {
			info = peer.Placeholder(string(id))
		}
		m.log.Info().Str(logger.PeerField, id.String()).Msgf("%v has left", info.Name)
		m.emit(Event{Kind: PeerLeft, Peer: id, Info: info})
	})
}

// HandleFlag records a disallowed site access reported by a student.
func (m *Manager) HandleFlag(id peer.Id, site string, at time.Time) {
	m.loop.Post(func() {
		info := m.info(id, "")
		m.metrics.Flags.Inc()
		m.log.Warn().Str(logger.PeerField, id.String()).Str("site", site).Msgf("%v flagged", info.Name)
		m.emit(Event{Kind: PeerFlagged, Peer: id, Info: info, Note: site, At: at})
	})
}

// SetRoster replaces the known students, e.g. on (re)joining a room.
// Tracked peers missing from the new roster have left in the meantime.
func (m *Manager) SetRoster(students map[peer.Id]peer.Participant) {
	m.loop.Post(func() {
		m.roster = make(map[peer.Id]peer.Participant, len(students))
		for id, info := range students {
			m.roster[id] = info
			m.merge(id, info)
		}
		for _, d := range m.table.Snapshot() {
			if _, ok := students[d.Id]; ok {
				continue
			}
			if gone, ok := m.teardown(d.Id); ok {
				m.log.Info().Str(logger.PeerField, d.Id.String()).Msgf("%v is gone", gone.Info.Name)
				m.emit(Event{Kind: PeerLeft, Peer: d.Id, Info: gone.Info})
			}
		}
	})
}

func (m *Manager) AddStudent(id peer.Id, info peer.Participant) {
	m.loop.Post(func() { m.roster[id] = info; m.merge(id, info) })
}

// Snapshot returns a copy of the tracked peers ordered by id.
func (m *Manager) Snapshot() []peer.Descriptor { return m.table.Snapshot() }

// Flush waits until everything posted so far is processed.
func (m *Manager) Flush() { m.loop.Flush() }

// CleanupAll destroys every transport, cancels pending reconnects and
// empties the table. It returns the collected destroy errors.
func (m *Manager) CleanupAll() error {
	var result *multierror.Error
	if !m.loop.Do(func() { result = m.cleanup() }) {
		return nil
	}
	return result.ErrorOrNil()
}

// Close cleans up and stops the manager, it can't be used after that.
func (m *Manager) Close() error {
	var result *multierror.Error
	m.loop.Do(func() { result = m.cleanup(); m.closed = true })
	m.loop.Stop()
	return result.ErrorOrNil()
}

func (m *Manager) startSharing(id peer.Id, studentId string) {
	if m.closed {
		return
	}
	log := m.log.Peer(id.String())
	if m.table.Has(id) {
		log.Debug().Msg("already tracked")
		return
	}
	info := m.info(id, studentId)
	tr, err := m.factory(id)
	if err != nil {
		log.Error().Err(err).Msg("couldn't create transport")
		m.metrics.Failures.Inc()
		m.emit(Event{Kind: PeerFailed, Peer: id, Info: info, Err: err})
		return
	}
	m.metrics.Created.Inc()
	d := peer.NewDescriptor(id, info, tr, m.nextAttempt())
	m.table.CreateIfAbsent(d)
	m.metrics.Tracked.Set(float64(m.table.Len()))
	m.bind(d)
	log.Info().Msgf("%v started sharing", info.Name)
	m.emit(Event{Kind: PeerAdded, Peer: id, Info: info})
}

// info resolves participant info from the roster with a placeholder fallback.
func (m *Manager) info(id peer.Id, studentId string) peer.Participant {
	if info, ok := m.roster[id]; ok {
		return info
	}
	if d, ok := m.table.Get(id); ok {
		return d.Info
	}
	if studentId == "" {
		studentId = string(id)
	}
	return peer.Placeholder(studentId)
}

func (m *Manager) merge(id peer.Id, info peer.Participant) {
	m.table.Update(id, func(d *peer.Descriptor) {
		if d.Info.Provisional {
			d.Info = info
		}
	})
}

func (m *Manager) nextAttempt() uint64 { m.attempt++; return m.attempt }

// bind routes transport callbacks to the loop tagged with the transport attempt,
// so that late callbacks of destroyed transports can be ignored.
func (m *Manager) bind(d *peer.Descriptor) {
	id, attempt, tr := d.Id, d.Attempt(), d.Transport()
	tr.OnSignal(func(s []byte) { m.loop.Post(func() { m.onSignal(id, attempt, s) }) })
	tr.OnStream(func(s peer.Stream) {
		if !m.loop.Post(func() { m.onStream(id, attempt, s) }) {
			s.Stop()
		}
	})
	tr.OnConnect(func() { m.loop.Post(func() { m.onConnect(id, attempt) }) })
	tr.OnError(func(err error) { m.loop.Post(func() { m.onError(id, attempt, err) }) })
}

// current returns the descriptor if the attempt is still the live one.
func (m *Manager) current(id peer.Id, attempt uint64) (*peer.Descriptor, bool) {
	d, ok := m.table.Get(id)
	if !ok || d.Attempt() != attempt || d.State == peer.Retrying {
		return nil, false
	}
	return d, true
}

func (m *Manager) onSignal(id peer.Id, attempt uint64, signal []byte) {
	if _, ok := m.current(id, attempt); !ok {
		m.log.Debug().Str(logger.PeerField, id.String()).Uint64("attempt", attempt).Msg("stale signal")
		return
	}
	if err := m.relay.SendSignal(id, signal); err != nil {
		m.log.Warn().Err(err).Str(logger.PeerField, id.String()).Msg("signal relay fail")
	}
}

func (m *Manager) onStream(id peer.Id, attempt uint64, s peer.Stream) {
	d, ok := m.current(id, attempt)
	if !ok {
		s.Stop()
		return
	}
	var prev peer.Stream
	m.table.Update(id, func(d *peer.Descriptor) {
		prev = d.Stream
		d.Stream = s
		d.State = peer.Streaming
	})
	switch {
	case prev == nil:
		m.metrics.Streaming.Inc()
	case prev != s:
		prev.Stop()
	}
	m.log.Info().Str(logger.PeerField, id.String()).Str("stream", s.Id()).Msg("streaming")
	m.emit(Event{Kind: PeerStreaming, Peer: id, Info: d.Info, Attempt: d.Retries})
}

func (m *Manager) onConnect(id peer.Id, attempt uint64) {
	d, ok := m.current(id, attempt)
	if !ok {
		return
	}
	m.table.Update(id, func(d *peer.Descriptor) { d.Connected = true })
	m.log.Info().Str(logger.PeerField, id.String()).Msg("connected")
	m.emit(Event{Kind: PeerConnected, Peer: id, Info: d.Info, Attempt: d.Retries})
}

func (m *Manager) onError(id peer.Id, attempt uint64, err error) {
	d, ok := m.current(id, attempt)
	if !ok {
		m.log.Debug().Err(err).Str(logger.PeerField, id.String()).Msg("stale error")
		return
	}
	log := m.log.Peer(id.String())
	if !peer.IsConnectionFailure(err) {
		log.Warn().Err(err).Msg("transport error")
		m.emit(Event{Kind: PeerWarning, Peer: id, Info: d.Info, Attempt: d.Retries, Err: err})
		return
	}
	if d.Retries >= m.maxRetries {
		log.Error().Err(err).Msgf("giving up after %v retries", d.Retries)
		m.fail(id, err)
		return
	}
	m.scheduleRetry(d, err)
}

// scheduleRetry destroys the current transport and keeps the descriptor
// in the table until the reconnect replaces it.
func (m *Manager) scheduleRetry(d *peer.Descriptor, cause error) {
	id, attempt := d.Id, d.Attempt()
	var tr peer.Transport
	var stream peer.Stream
	m.table.Update(id, func(d *peer.Descriptor) {
		tr = d.Detach()
		stream, d.Stream = d.Stream, nil
		d.Connected = false
		d.State = peer.Retrying
	})
	m.stopStream(stream)
	if tr != nil {
		if err := tr.Destroy(); err != nil {
			m.log.Warn().Err(err).Str(logger.PeerField, id.String()).Msg("transport destroy")
		}
	}
	m.metrics.Retries.Inc()
	next := d.Retries + 1
	m.log.Warn().Err(cause).Str(logger.PeerField, id.String()).
		Msgf("reconnect %v/%v in %v", next, m.maxRetries, m.backoff)
	m.emit(Event{Kind: PeerRetrying, Peer: id, Info: d.Info, Attempt: next, Err: cause})
	m.timers[id] = m.sched.AfterFunc(m.backoff, func() {
		m.loop.Post(func() { m.retry(id, attempt) })
	})
}

func (m *Manager) retry(id peer.Id, attempt uint64) {
	d, ok := m.table.Get(id)
	if m.closed || !ok || d.State != peer.Retrying || d.Attempt() != attempt {
		m.log.Debug().Str(logger.PeerField, id.String()).Msg("reconnect cancelled")
		return
	}
	delete(m.timers, id)

	tr, err := m.factory(id)
	if err != nil {
		m.log.Error().Err(err).Str(logger.PeerField, id.String()).Msg("couldn't recreate transport")
		m.fail(id, err)
		return
	}
	next := peer.NewDescriptor(id, d.Info, tr, m.nextAttempt())
	next.Retries = d.Retries + 1
	if _, ok := m.table.Replace(id, next); !ok {
		_ = tr.Destroy()
		return
	}
	m.metrics.Created.Inc()
	m.bind(next)
	m.log.Info().Str(logger.PeerField, id.String()).Msgf("reconnecting, attempt %v", next.Retries)
}

func (m *Manager) fail(id peer.Id, cause error) {
	d, ok := m.teardown(id)
	if !ok {
		return
	}
	m.metrics.Failures.Inc()
	m.emit(Event{Kind: PeerFailed, Peer: id, Info: d.Info, Attempt: d.Retries, Err: cause})
}

func (m *Manager) inboundSignal(id peer.Id, payload []byte) {
	d, ok := m.table.Get(id)
	if !ok || d.Transport() == nil {
		m.metrics.Dropped.Inc()
		m.log.Debug().Str(logger.PeerField, id.String()).Msg("signal dropped, no transport")
		return
	}
	if err := d.Transport().Signal(payload); err != nil {
		m.onError(id, d.Attempt(), err)
	}
}

// teardown cancels the reconnect, removes the peer and destroys its transport.
func (m *Manager) teardown(id peer.Id) (*peer.Descriptor, bool) {
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	d, ok := m.table.Remove(id)
	if !ok {
		return nil, false
	}
	if err := m.dispose(d); err != nil {
		m.log.Warn().Err(err).Str(logger.PeerField, id.String()).Msg("transport destroy")
	}
	m.metrics.Tracked.Set(float64(m.table.Len()))
	return d, true
}

// dispose releases a descriptor that is no longer in the table.
func (m *Manager) dispose(d *peer.Descriptor) error {
	m.stopStream(d.Stream)
	d.Stream = nil
	return d.Release()
}

func (m *Manager) stopStream(s peer.Stream) {
	if s == nil {
		return
	}
	s.Stop()
	m.metrics.Streaming.Dec()
}

func (m *Manager) cleanup() *multierror.Error {
	var result *multierror.Error
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	for _, d := range m.table.Drain() {
		if err := m.dispose(d); err != nil {
			result = multierror.Append(result, fmt.Errorf("%v: %w", d.Id, err))
		}
		m.emit(Event{Kind: PeerRemoved, Peer: d.Id, Info: d.Info})
	}
	m.metrics.Tracked.Set(0)
	return result
}

func (m *Manager) emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	for _, fn := range m.listeners {
		fn(e)
	}
}
