package examiner

import (
	"sync"
	"time"

	"github.com/giongto35/proctor/pkg/peer"
)

type fakeTransport struct {
	mu         sync.Mutex
	onSignal   func([]byte)
	onStream   func(peer.Stream)
	onConnect  func()
	onError    func(error)
	applied    [][]byte
	destroyed  int
	signalErr  error
	destroyErr error
}

func (t *fakeTransport) OnSignal(fn func([]byte))      { t.mu.Lock(); t.onSignal = fn; t.mu.Unlock() }
func (t *fakeTransport) OnStream(fn func(peer.Stream)) { t.mu.Lock(); t.onStream = fn; t.mu.Unlock() }
func (t *fakeTransport) OnConnect(fn func())           { t.mu.Lock(); t.onConnect = fn; t.mu.Unlock() }
func (t *fakeTransport) OnError(fn func(error))        { t.mu.Lock(); t.onError = fn; t.mu.Unlock() }

func (t *fakeTransport) Signal(s []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applied = append(t.applied, s)
	return t.signalErr
}

func (t *fakeTransport) Destroy() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destroyed++
	return t.destroyErr
}

func (t *fakeTransport) Destroyed() int { t.mu.Lock(); defer t.mu.Unlock(); return t.destroyed }

func (t *fakeTransport) emitSignal(s string) { t.mu.Lock(); fn := t.onSignal; t.mu.Unlock(); fn([]byte(s)) }
func (t *fakeTransport) emitStream(s peer.Stream) {
	t.mu.Lock()
	fn := t.onStream
	t.mu.Unlock()
	fn(s)
}
func (t *fakeTransport) emitConnect()        { t.mu.Lock(); fn := t.onConnect; t.mu.Unlock(); fn() }
func (t *fakeTransport) emitError(err error) { t.mu.Lock(); fn := t.onError; t.mu.Unlock(); fn(err) }

type fakeFactory struct {
	mu      sync.Mutex
	created map[peer.Id][]*fakeTransport
	all     []*fakeTransport
	err     error
	prepare func(*fakeTransport)
}

func newFakeFactory() *fakeFactory { return &fakeFactory{created: map[peer.Id][]*fakeTransport{}} }

func (f *fakeFactory) New(id peer.Id) (peer.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t := &fakeTransport{}
	if f.prepare != nil {
		f.prepare(t)
	}
	f.created[id] = append(f.created[id], t)
	f.all = append(f.all, t)
	return t, nil
}

func (f *fakeFactory) count(id peer.Id) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created[id])
}

func (f *fakeFactory) last(id peer.Id) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.created[id]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

func (f *fakeFactory) transports() []*fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeTransport(nil), f.all...)
}

type sent struct {
	to     peer.Id
	signal string
}

type fakeRelay struct {
	mu   sync.Mutex
	sent []sent
}

func (r *fakeRelay) SendSignal(to peer.Id, signal []byte) error {
	r.mu.Lock()
	r.sent = append(r.sent, sent{to: to, signal: string(signal)})
	r.mu.Unlock()
	return nil
}

func (r *fakeRelay) list() []sent { r.mu.Lock(); defer r.mu.Unlock(); return append([]sent(nil), r.sent...) }

type fakeStream struct {
	id      string
	mu      sync.Mutex
	stopped int
}

func (s *fakeStream) Id() string { return s.id }
func (s *fakeStream) Stop()      { s.mu.Lock(); s.stopped++; s.mu.Unlock() }
func (s *fakeStream) Stopped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// manualScheduler keeps timers until fired by the test.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) peer.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fire runs pending timers, the stopped ones too if force is set.
func (s *manualScheduler) fire(force bool) int {
	s.mu.Lock()
	var run []func()
	for _, t := range s.timers {
		if t.fired || (t.stopped && !force) {
			continue
		}
		t.fired = true
		run = append(run, t.f)
	}
	s.timers = nil
	s.mu.Unlock()
	for _, f := range run {
		f()
	}
	return len(run)
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(e Event) { r.mu.Lock(); r.events = append(r.events, e); r.mu.Unlock() }

func (r *recorder) kinds(id peer.Id) []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventKind
	for _, e := range r.events {
		if e.Peer == id {
			out = append(out, e.Kind)
		}
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
