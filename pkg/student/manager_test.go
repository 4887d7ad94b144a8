package student

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/peer"
)

type fakeTransport struct {
	mu        sync.Mutex
	onSignal  func([]byte)
	onConnect func()
	onError   func(error)
	applied   []string
	destroyed int
}

func (t *fakeTransport) OnSignal(fn func([]byte))   { t.mu.Lock(); t.onSignal = fn; t.mu.Unlock() }
func (t *fakeTransport) OnStream(func(peer.Stream)) {}
func (t *fakeTransport) OnConnect(fn func())        { t.mu.Lock(); t.onConnect = fn; t.mu.Unlock() }
func (t *fakeTransport) OnError(fn func(error))     { t.mu.Lock(); t.onError = fn; t.mu.Unlock() }
func (t *fakeTransport) Signal(s []byte) error      { t.mu.Lock(); t.applied = append(t.applied, string(s)); t.mu.Unlock(); return nil }
func (t *fakeTransport) Destroy() error             { t.mu.Lock(); t.destroyed++; t.mu.Unlock(); return nil }
func (t *fakeTransport) Destroyed() int             { t.mu.Lock(); defer t.mu.Unlock(); return t.destroyed }
func (t *fakeTransport) emitSignal(s string)        { t.mu.Lock(); fn := t.onSignal; t.mu.Unlock(); fn([]byte(s)) }
func (t *fakeTransport) emitConnect()               { t.mu.Lock(); fn := t.onConnect; t.mu.Unlock(); fn() }
func (t *fakeTransport) emitError(err error)        { t.mu.Lock(); fn := t.onError; t.mu.Unlock(); fn(err) }
func (t *fakeTransport) Applied() []string          { t.mu.Lock(); defer t.mu.Unlock(); return append([]string(nil), t.applied...) }

type fakeFactory struct {
	mu  sync.Mutex
	all []*fakeTransport
	err error
}

func (f *fakeFactory) New(peer.Stream) (peer.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t := &fakeTransport{}
	f.all = append(f.all, t)
	return t, nil
}

func (f *fakeFactory) count() int { f.mu.Lock(); defer f.mu.Unlock(); return len(f.all) }

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.all) == 0 {
		return nil
	}
	return f.all[len(f.all)-1]
}

type fakeChannel struct {
	mu      sync.Mutex
	signals []string
	to      []peer.Id
	started int
	stopped int
	flags   []string
}

func (c *fakeChannel) SendSignal(to peer.Id, s []byte) error {
	c.mu.Lock()
	c.to = append(c.to, to)
	c.signals = append(c.signals, string(s))
	c.mu.Unlock()
	return nil
}
func (c *fakeChannel) StartedSharing() error { c.mu.Lock(); c.started++; c.mu.Unlock(); return nil }
func (c *fakeChannel) StoppedSharing() error { c.mu.Lock(); c.stopped++; c.mu.Unlock(); return nil }
func (c *fakeChannel) Flag(site string, _ time.Time) error {
	c.mu.Lock()
	c.flags = append(c.flags, site)
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) counts() (started, stopped, signals int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started, c.stopped, len(c.signals)
}

type fakeStream struct {
	mu      sync.Mutex
	stopped int
}

func (s *fakeStream) Id() string   { return "screen" }
func (s *fakeStream) Stop()        { s.mu.Lock(); s.stopped++; s.mu.Unlock() }
func (s *fakeStream) Stopped() int { s.mu.Lock(); defer s.mu.Unlock(); return s.stopped }

func newTest(t *testing.T, opts ...Option) (*Manager, *fakeFactory, *fakeChannel) {
	t.Helper()
	f, ch := &fakeFactory{}, &fakeChannel{}
	m := New(ch, f.New, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	t.Cleanup(m.Close)
	return m, f, ch
}

func sharing(t *testing.T, m *Manager) *fakeStream {
	t.Helper()
	m.HandleExamStart()
	s := &fakeStream{}
	if err := m.StartCapture(s); err != nil {
		t.Fatalf("capture: %v", err)
	}
	return s
}

func TestExamGating(t *testing.T) {
	m, _, ch := newTest(t)

	if err := m.StartCapture(&fakeStream{}); !errors.Is(err, ErrExamNotStarted) {
		t.Errorf("expected %v, got %v", ErrExamNotStarted, err)
	}
	sharing(t, m)
	if err := m.StartCapture(&fakeStream{}); !errors.Is(err, ErrCapturing) {
		t.Errorf("expected %v, got %v", ErrCapturing, err)
	}
	if started, _, _ := ch.counts(); started != 1 {
		t.Errorf("expected 1 sharing announce, got %v", started)
	}
}

func TestDropBeforeCapture(t *testing.T) {
	m, f, _ := newTest(t)
	m.HandleExamStart()

	m.HandleInboundSignal("ex", []byte("offer"))
	m.Flush()

	if n := f.count(); n != 0 {
		t.Errorf("expected no transports, got %v", n)
	}
}

func TestLazyResponder(t *testing.T) {
	m, f, ch := newTest(t)
	sharing(t, m)

	m.HandleInboundSignal("ex", []byte("offer"))
	m.HandleInboundSignal("ex", []byte("candidate"))
	m.Flush()

	if n := f.count(); n != 1 {
		t.Fatalf("expected 1 transport, got %v", n)
	}
	tr := f.last()
	if got := tr.Applied(); len(got) != 2 || got[0] != "offer" || got[1] != "candidate" {
		t.Errorf("wrong applied signals %v", got)
	}

	tr.emitSignal("answer")
	tr.emitConnect()
	m.Flush()

	ch.mu.Lock()
	to, signals := append([]peer.Id(nil), ch.to...), append([]string(nil), ch.signals...)
	ch.mu.Unlock()
	if len(to) != 1 || to[0] != "ex" || signals[0] != "answer" {
		t.Errorf("answer went wrong way: %v %v", to, signals)
	}
	if s := m.Status(); !s.Connected || s.Examiner != "ex" {
		t.Errorf("wrong status %+v", s)
	}
}

func TestTransportErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		release bool
	}{
		{name: "connectivity", err: fmt.Errorf("ice: %w", peer.ErrConnectionFailed), release: true},
		{name: "other", err: errors.New("sdp"), release: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m, f, _ := newTest(t)
			sharing(t, m)
			m.HandleInboundSignal("ex", []byte("offer"))
			m.Flush()

			tr := f.last()
			tr.emitError(test.err)
			m.Flush()

			if released := tr.Destroyed() == 1; released != test.release {
				t.Errorf("expected release %v, got %v", test.release, released)
			}
			if s := m.Status(); s.Transport == test.release {
				t.Errorf("wrong transport status %+v", s)
			}

			m.HandleInboundSignal("ex", []byte("offer"))
			m.Flush()
			want := 1
			if test.release {
				want = 2
			}
			if n := f.count(); n != want {
				t.Errorf("expected %v transports, got %v", want, n)
			}
		})
	}
}

func TestStaleCallbacks(t *testing.T) {
	m, f, ch := newTest(t)
	sharing(t, m)
	m.HandleInboundSignal("ex", []byte("offer"))
	m.Flush()
	old := f.last()
	old.emitError(peer.ErrConnectionFailed)
	m.Flush()

	old.emitSignal("late answer")
	old.emitConnect()
	m.Flush()

	if _, _, n := ch.counts(); n != 0 {
		t.Errorf("stale signal was relayed")
	}
	if m.Status().Connected {
		t.Errorf("stale connect was applied")
	}
}

func TestRestart(t *testing.T) {
	m, f, _ := newTest(t, WithRestart(func(p []byte) bool { return string(p) == "offer" }))
	sharing(t, m)

	m.HandleInboundSignal("ex", []byte("offer"))
	m.HandleInboundSignal("ex", []byte("candidate"))
	m.HandleInboundSignal("ex", []byte("offer"))
	m.Flush()

	if n := f.count(); n != 2 {
		t.Fatalf("expected 2 transports, got %v", n)
	}
	if d := f.all[0].Destroyed(); d != 1 {
		t.Errorf("old transport should be destroyed once, got %v", d)
	}
	if got := f.last().Applied(); len(got) != 1 || got[0] != "offer" {
		t.Errorf("wrong signals for the new transport %v", got)
	}
}

func TestExamEnd(t *testing.T) {
	m, f, ch := newTest(t)
	s := sharing(t, m)
	m.HandleInboundSignal("ex", []byte("offer"))
	m.HandleExamEnd()
	m.Flush()

	if f.last().Destroyed() != 1 {
		t.Errorf("transport is not destroyed")
	}
	if s.Stopped() != 1 {
		t.Errorf("stream is not stopped")
	}
	if _, stopped, _ := ch.counts(); stopped != 1 {
		t.Errorf("expected stop announce, got %v", stopped)
	}
	if err := m.StartCapture(&fakeStream{}); !errors.Is(err, ErrExamNotStarted) {
		t.Errorf("capture after the exam end: %v", err)
	}
}

func TestStopCapture(t *testing.T) {
	m, f, ch := newTest(t)
	s := sharing(t, m)
	m.HandleInboundSignal("ex", []byte("offer"))

	m.StopCapture()
	m.StopCapture()

	if f.last().Destroyed() != 1 || s.Stopped() != 1 {
		t.Errorf("capture is not released")
	}
	if _, stopped, _ := ch.counts(); stopped != 1 {
		t.Errorf("expected 1 stop announce, got %v", stopped)
	}
	if st := m.Status(); st.Capturing || st.Transport {
		t.Errorf("wrong status %+v", st)
	}
}

func TestFactoryError(t *testing.T) {
	m, f, _ := newTest(t)
	f.err = errors.New("no ports")
	sharing(t, m)

	m.HandleInboundSignal("ex", []byte("offer"))
	m.Flush()

	if m.Status().Transport {
		t.Errorf("transport should not exist")
	}
}

func TestClose(t *testing.T) {
	m, f, _ := newTest(t)
	s := sharing(t, m)
	m.HandleInboundSignal("ex", []byte("offer"))

	m.Close()

	if f.last().Destroyed() != 1 || s.Stopped() != 1 {
		t.Errorf("close didn't release the capture")
	}
	if err := m.StartCapture(&fakeStream{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected %v, got %v", ErrClosed, err)
	}
}

func TestReportFlag(t *testing.T) {
	m, _, ch := newTest(t)
	if err := m.ReportFlag("example.com"); err != nil {
		t.Fatal(err)
	}
	if len(ch.flags) != 1 || ch.flags[0] != "example.com" {
		t.Errorf("wrong flags %v", ch.flags)
	}
}
