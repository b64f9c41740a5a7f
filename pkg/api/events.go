package api

import "github.com/goccy/go-json"

// ClientInfo is one room member as seen by the others.
type ClientInfo struct {
	SocketId string `json:"socketId"`
	Username string `json:"username"`
}

type JoinRequest struct {
	RoomId   string `json:"roomId"`
	Username string `json:"username"`
}

// JoinedResponse goes to every room member, the new one included;
// Clients is the membership snapshot ordered by join time.
type JoinedResponse struct {
	Clients  []ClientInfo `json:"clients"`
	Username string       `json:"username"`
	SocketId string       `json:"socketId"`
}

type DisconnectedNotice struct {
	SocketId string `json:"socketId"`
	Username string `json:"username"`
}

type CodeChangeRequest struct {
	RoomId   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

type CodeChangeNotice struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

// SyncRequestNotice asks one member to push its buffer to a late joiner.
type SyncRequestNotice struct {
	SocketId string `json:"socketId"`
}

type SyncCodeRequest struct {
	Code     string `json:"code"`
	SocketId string `json:"socketId"`
	Language string `json:"language,omitempty"`
}

type GetDocumentRequest struct {
	RoomId string `json:"roomId"`
}

// LoadDocumentResponse carries the materialized snapshot and the raw
// operation log for a late joiner.
type LoadDocumentResponse struct {
	Content string            `json:"content"`
	Ops     []json.RawMessage `json:"ops"`
	Clients []ClientInfo      `json:"clients"`
}

// DocChangeRequest is one opaque delta; relayed verbatim.
type DocChangeRequest struct {
	RoomId string          `json:"roomId,omitempty"`
	Delta  json.RawMessage `json:"delta"`
}

type DocReceiveNotice struct {
	Delta json.RawMessage `json:"delta"`
}

type SaveDocumentRequest struct {
	RoomId string `json:"roomId"`
}

type VoiceJoinRequest struct {
	RoomId   string `json:"roomId"`
	Username string `json:"username"`
}

type VoiceLeaveRequest struct {
	RoomId string `json:"roomId"`
}

// VoiceOfferPayload is used both directions: the sender names the
// target in PeerId, the relay rewrites PeerId to the sender's id.
type VoiceOfferPayload struct {
	Offer    json.RawMessage `json:"offer"`
	PeerId   string          `json:"peerId"`
	Username string          `json:"username,omitempty"`
}

type VoiceAnswerPayload struct {
	Answer json.RawMessage `json:"answer"`
	PeerId string          `json:"peerId"`
}

type IceCandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
	PeerId    string          `json:"peerId"`
}

type VoiceUserJoinedNotice struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

type VoiceUserLeftNotice struct {
	UserId string `json:"userId"`
}
