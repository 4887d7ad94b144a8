package webrtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/peer"
	"github.com/pion/webrtc/v4"
)

// Peer is a pion connection to a single remote participant.
// The examiner side is the initiator, it only receives video.
// The student side responds to offers and sends its local tracks.
type Peer struct {
	conn      *webrtc.PeerConnection
	log       *logger.Logger
	initiator bool

	// out keeps outgoing signals in order
	out       sync.Mutex
	mu        sync.Mutex
	onSignal  func([]byte)
	onStream  func(peer.Stream)
	onConnect func()
	onError   func(error)
	// stuff that happened before the callbacks were set
	signals   [][]byte
	stream    peer.Stream
	connected bool
	err       error

	candidates []webrtc.ICECandidateInit
	destroyed  bool
}

var errGlare = errors.New("offer to the initiator")

// NewInitiator makes a receiving connection and creates the offer.
func (a *ApiFactory) NewInitiator(log *logger.Logger) (*Peer, error) {
	conn, err := a.NewPeer()
	if err != nil {
		return nil, err
	}
	p := newPeer(conn, log, true)
	if _, err = conn.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	offer, err := conn.CreateOffer(nil)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// goes out ahead of the candidates
	p.send(Signal{Type: TypeOffer, SDP: offer.SDP})
	if err = conn.SetLocalDescription(offer); err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.log.Debug().Msg("Created Offer")
	return p, nil
}

// NewResponder makes a sending connection with the local tracks,
// it waits for an offer.
func (a *ApiFactory) NewResponder(log *logger.Logger, tracks ...webrtc.TrackLocal) (*Peer, error) {
	conn, err := a.NewPeer()
	if err != nil {
		return nil, err
	}
	p := newPeer(conn, log, false)
	for _, track := range tracks {
		sender, err := conn.AddTrack(track)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		// Read incoming RTCP packets
		go func() {
			rtcpBuf := make([]byte, 1500)
			for {
				if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
					return
				}
			}
		}()
		p.log.Debug().Msgf("Added [%s] track", track.Kind())
	}
	return p, nil
}

func newPeer(conn *webrtc.PeerConnection, log *logger.Logger, initiator bool) *Peer {
	p := &Peer{conn: conn, log: log, initiator: initiator}
	conn.OnICECandidate(p.handleICECandidate)
	conn.OnConnectionStateChange(p.handleState)
	conn.OnTrack(p.handleTrack)
	return p
}

func (p *Peer) OnSignal(fn func([]byte)) {
	p.out.Lock()
	defer p.out.Unlock()
	p.mu.Lock()
	p.onSignal = fn
	queue := p.signals
	p.signals = nil
	p.mu.Unlock()
	for _, s := range queue {
		fn(s)
	}
}

func (p *Peer) OnStream(fn func(peer.Stream)) {
	p.mu.Lock()
	p.onStream = fn
	s := p.stream
	p.stream = nil
	p.mu.Unlock()
	if s != nil {
		fn(s)
	}
}

func (p *Peer) OnConnect(fn func()) {
	p.mu.Lock()
	p.onConnect = fn
	was := p.connected
	p.connected = false
	p.mu.Unlock()
	if was {
		fn()
	}
}

func (p *Peer) OnError(fn func(error)) {
	p.mu.Lock()
	p.onError = fn
	err := p.err
	p.err = nil
	p.mu.Unlock()
	if err != nil {
		fn(err)
	}
}

// Signal applies an offer, answer or candidate from the remote side.
func (p *Peer) Signal(data []byte) error {
	s, err := DecodeSignal(data)
	if err != nil {
		return err
	}
	if p.isDestroyed() {
		return nil
	}
	switch s.Type {
	case TypeOffer:
		if p.initiator {
			return errGlare
		}
		if err = p.conn.SetRemoteDescription(s.description()); err != nil {
			return fmt.Errorf("remote offer: %w", err)
		}
		p.flushCandidates()
		answer, err := p.conn.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		p.send(Signal{Type: TypeAnswer, SDP: answer.SDP})
		if err = p.conn.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("local answer: %w", err)
		}
		p.log.Debug().Msg("Created Answer")
	case TypeAnswer:
		if err = p.conn.SetRemoteDescription(s.description()); err != nil {
			return fmt.Errorf("remote answer: %w", err)
		}
		p.log.Debug().Msg("Set Remote Description")
		p.flushCandidates()
	case TypeCandidate:
		return p.addCandidate(*s.Candidate)
	}
	return nil
}

// Destroy closes the connection. Calling it more than once does nothing.
func (p *Peer) Destroy() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	p.signals, p.candidates = nil, nil
	s := p.stream
	p.stream = nil
	p.mu.Unlock()

	if s != nil {
		s.Stop()
	}
	err := p.conn.Close()
	p.log.Debug().Msg("WebRTC stop")
	return err
}

func (p *Peer) isDestroyed() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.destroyed }

func (p *Peer) addCandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if p.conn.RemoteDescription() == nil {
		p.candidates = append(p.candidates, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	if err := p.conn.AddICECandidate(c); err != nil {
		return fmt.Errorf("candidate: %w", err)
	}
	p.log.Trace().Str("candidate", c.Candidate).Msg("Ice")
	return nil
}

func (p *Peer) flushCandidates() {
	p.mu.Lock()
	list := p.candidates
	p.candidates = nil
	p.mu.Unlock()
	for _, c := range list {
		if err := p.conn.AddICECandidate(c); err != nil {
			p.log.Warn().Err(err).Str("candidate", c.Candidate).Msg("buffered candidate")
		}
	}
}

func (p *Peer) send(s Signal) {
	data, err := s.Encode()
	if err != nil {
		p.log.Error().Err(err).Msgf("signal encode fail [%v]", s.Type)
		return
	}
	p.out.Lock()
	defer p.out.Unlock()
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	fn := p.onSignal
	if fn == nil {
		p.signals = append(p.signals, data)
	}
	p.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (p *Peer) handleICECandidate(ice *webrtc.ICECandidate) {
	// ICE gathering finish condition
	if ice == nil {
		p.log.Debug().Msg("ICE gathering was complete probably")
		return
	}
	candidate := ice.ToJSON()
	p.log.Trace().Str("candidate", candidate.Candidate).Msg("ICE")
	p.send(Signal{Type: TypeCandidate, Candidate: &candidate})
}

func (p *Peer) handleState(state webrtc.PeerConnectionState) {
	p.log.Debug().Str(".state", state.String()).Msg("WebRTC")
	switch state {
	case webrtc.PeerConnectionStateConnected:
		p.mu.Lock()
		fn := p.onConnect
		if fn == nil && !p.destroyed {
			p.connected = true
		}
		p.mu.Unlock()
		if fn != nil {
			fn()
		}
	case webrtc.PeerConnectionStateFailed:
		p.log.Error().Msgf("WebRTC connection fail! ice: %v, gathering: %v, signalling: %v",
			p.conn.ICEConnectionState(), p.conn.ICEGatheringState(), p.conn.SignalingState())
		p.fail(fmt.Errorf("%w: %v", peer.ErrConnectionFailed, state))
	}
}

func (p *Peer) fail(err error) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	fn := p.onError
	if fn == nil {
		p.err = err
	}
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (p *Peer) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	p.log.Info().Msgf("Remote [%s] track %s", track.Kind(), track.Codec().MimeType)
	s := newRemoteStream(track)
	go s.drain()

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		s.Stop()
		return
	}
	fn := p.onStream
	if fn == nil {
		p.stream = s
	}
	p.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
