// Package api defines the packet surface between browser clients and the relay.
//
// Each packet is a JSON-encoded message of the following structure:
//
//	t - (required) one of the predefined unique packet types;
//	p - (optional) packet payload with arbitrary data.
//
// Packets differentiate by their predefined types with which it is
// possible to unwrap the payload into distinct request/response
// data structures.
//
// Example:
//
//	{"t":10,"p":{"room_id":"r1","code":"print(1)"}}
package api

import (
	"github.com/goccy/go-json"
)

type PT uint8

// Packet codes:
//
//	1x - room membership
//	2x - code buffer
//	3x - document
//	4x - voice signaling
const (
	Join         PT = 10
	Joined       PT = 11
	Disconnected PT = 12

	CodeChange  PT = 20
	SyncRequest PT = 21
	SyncCode    PT = 22

	GetDocument  PT = 30
	LoadDocument PT = 31
	DocChange    PT = 32
	DocReceive   PT = 33
	SaveDocument PT = 34

	VoiceJoin       PT = 40
	VoiceOffer      PT = 41
	VoiceAnswer     PT = 42
	IceCandidate    PT = 43
	VoiceUserJoined PT = 44
	VoiceUserLeft   PT = 45
	VoiceLeave      PT = 46
)

func (p PT) String() string {
	switch p {
	case Join:
		return "Join"
	case Joined:
		return "Joined"
	case Disconnected:
		return "Disconnected"
	case CodeChange:
		return "CodeChange"
	case SyncRequest:
		return "SyncRequest"
	case SyncCode:
		return "SyncCode"
	case GetDocument:
		return "GetDocument"
	case LoadDocument:
		return "LoadDocument"
	case DocChange:
		return "DocChange"
	case DocReceive:
		return "DocReceive"
	case SaveDocument:
		return "SaveDocument"
	case VoiceJoin:
		return "VoiceJoin"
	case VoiceOffer:
		return "VoiceOffer"
	case VoiceAnswer:
		return "VoiceAnswer"
	case IceCandidate:
		return "IceCandidate"
	case VoiceUserJoined:
		return "VoiceUserJoined"
	case VoiceUserLeft:
		return "VoiceUserLeft"
	case VoiceLeave:
		return "VoiceLeave"
	}
	return "Unknown"
}

// In is an incoming packet; the payload stays raw for a 2-pass unmarshal.
type In struct {
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"`
}

// Out is an outgoing packet.
type Out struct {
	T       PT  `json:"t"`
	Payload any `json:"p,omitempty"`
}

// Unwrap decodes a raw payload into T, nil on error.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// UnwrapChecked is Unwrap that returns the decode error.
func UnwrapChecked[T any](data []byte) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
