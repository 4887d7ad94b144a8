// Package api defines the signaling protocol shared by the hub, examiners and students.
//
// Each message is a JSON-encoded "packet" of the following structure:
//
//	id - (optional) a packet id;
//	 t - (required) one of the predefined packet types;
//	 p - (optional) packet payload with arbitrary data.
//
// Packets differentiate by their types, with which it is possible to unwrap
// the payload into distinct data structures. Signaling payloads (SDP, ICE)
// are carried as raw JSON and never interpreted by the hub.
//
// Example:
//
//	{"t":22,"p":{"to":"cfv68irdrc3ifu3jn6bg","signal":{"type":"offer","sdp":"v=0..."}}}
package api

import (
	"encoding/json"
	"errors"

	gojson "github.com/goccy/go-json"
)

type PT uint8

type In struct {
	Id      string          `json:"id,omitempty"`
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // should be json.RawMessage for 2-pass unmarshal
}

type Out struct {
	Id      string `json:"id,omitempty"`
	T       PT     `json:"t"`
	Payload any    `json:"p,omitempty"`
}

// Packet codes:
//
//	1x - room membership
//	2x - sharing and signaling
//	3x - exam lifecycle and flags
const (
	Joined          PT = 10
	CurrentStudents PT = 11
	StudentJoined   PT = 12
	StudentLeft     PT = 13
	ErrRoom         PT = 14
	StartedSharing  PT = 20
	StoppedSharing  PT = 21
	SendSignal      PT = 22
	ReceiveSignal   PT = 23
	ExamStart       PT = 30
	ExamEnd         PT = 31
	Flag            PT = 32
)

func (p PT) String() string {
	switch p {
	case Joined:
		return "Joined"
	case CurrentStudents:
		return "CurrentStudents"
	case StudentJoined:
		return "StudentJoined"
	case StudentLeft:
		return "StudentLeft"
	case ErrRoom:
		return "ErrRoom"
	case StartedSharing:
		return "StartedSharing"
	case StoppedSharing:
		return "StoppedSharing"
	case SendSignal:
		return "SendSignal"
	case ReceiveSignal:
		return "ReceiveSignal"
	case ExamStart:
		return "ExamStart"
	case ExamEnd:
		return "ExamEnd"
	case Flag:
		return "Flag"
	default:
		return "Unknown"
	}
}

var ErrMalformed = errors.New("malformed")

// Unwrap decodes a packet payload into some type.
func Unwrap[T any](data []byte) (*T, error) {
	out := new(T)
	if len(data) == 0 {
		return nil, ErrMalformed
	}
	if err := gojson.Unmarshal(data, out); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	return out, nil
}

func Encode(packet Out) ([]byte, error) { return gojson.Marshal(packet) }

func Decode(data []byte) (In, error) {
	var in In
	err := gojson.Unmarshal(data, &in)
	return in, err
}
