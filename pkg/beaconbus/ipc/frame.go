package ipc

import (
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

// frameKind names a message on the hub socket.
//
// A peer opens with hello and the hub answers welcome (or error). After
// that the peer sends publish frames and the hub sends event frames for
// everything published by anyone else.
type frameKind string

const (
	frameHello   frameKind = "hello"
	frameWelcome frameKind = "welcome"
	framePublish frameKind = "publish"
	frameEvent   frameKind = "event"
	frameError   frameKind = "error"
)

type frame struct {
	Kind     frameKind       `cbor:"kind"`
	Scope    string          `cbor:"scope,omitempty"`
	PeerID   string          `cbor:"peer_id,omitempty"`
	Envelope *event.Envelope `cbor:"envelope,omitempty"`
	Error    string          `cbor:"error,omitempty"`
}
