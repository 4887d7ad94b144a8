package webrtc

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
)

// Signal is a handshake message exchanged over the signaling channel.
//
//	{"type":"offer","sdp":"v=0..."}
//	{"type":"candidate","candidate":{"candidate":"candidate:1 1 udp ...","sdpMid":"0"}}
type Signal struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
)

var ErrBadSignal = errors.New("bad signal")

func DecodeSignal(data []byte) (Signal, error) {
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: %w", ErrBadSignal, err)
	}
	switch s.Type {
	case TypeOffer, TypeAnswer:
		if s.SDP == "" {
			return s, fmt.Errorf("%w: no sdp in %v", ErrBadSignal, s.Type)
		}
	case TypeCandidate:
		if s.Candidate == nil {
			return s, fmt.Errorf("%w: no candidate", ErrBadSignal)
		}
	default:
		return s, fmt.Errorf("%w: unknown type [%v]", ErrBadSignal, s.Type)
	}
	return s, nil
}

func (s Signal) Encode() ([]byte, error) { return json.Marshal(s) }

func (s Signal) description() webrtc.SessionDescription {
	t := webrtc.SDPTypeOffer
	if s.Type == TypeAnswer {
		t = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: t, SDP: s.SDP}
}

// IsOffer tells whether the payload starts a new negotiation.
func IsOffer(data []byte) bool {
	s, err := DecodeSignal(data)
	return err == nil && s.Type == TypeOffer
}
