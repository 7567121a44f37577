// Package protocol holds every message the game speaks: root packets sent as
// single datagrams, root messages nested inside them, game data messages
// nested inside GameData/GameDataTo and rpc calls nested inside Rpc.
//
// The layout of every message is externally fixed. Where client→server and
// server→client layouts differ under one tag, the codec takes the Direction
// explicitly and decodes into distinct types.
package protocol

import (
	"fmt"

	"github.com/blukai/skeldparty/internal/hazel"
)

// MaxPacketSize bounds a single datagram (the udp payload limit).
const MaxPacketSize = 65507

type Direction uint8

const (
	// Serverbound is client → server.
	Serverbound Direction = iota
	// Clientbound is server → client.
	Clientbound
)

func (d Direction) Reverse() Direction {
	if d == Serverbound {
		return Clientbound
	}
	return Serverbound
}

func (d Direction) String() string {
	if d == Serverbound {
		return "serverbound"
	}
	return "clientbound"
}

type Namespace uint8

const (
	NamespaceRoot Namespace = iota
	NamespaceGameData
	NamespaceRpc
	NamespaceSystem
)

func (ns Namespace) String() string {
	switch ns {
	case NamespaceRoot:
		return "root"
	case NamespaceGameData:
		return "gamedata"
	case NamespaceRpc:
		return "rpc"
	case NamespaceSystem:
		return "system"
	default:
		return fmt.Sprintf("namespace(%d)", uint8(ns))
	}
}

// Tag is a message's registry key.
type Tag struct {
	Namespace Namespace
	ID        uint8
}

func (t Tag) String() string {
	return fmt.Sprintf("%s/%d", t.Namespace, t.ID)
}

func RootTag(id uint8) Tag     { return Tag{NamespaceRoot, id} }
func GameDataTag(id uint8) Tag { return Tag{NamespaceGameData, id} }
func RpcTag(id uint8) Tag      { return Tag{NamespaceRpc, id} }
func SystemTag(t SystemType) Tag {
	return Tag{NamespaceSystem, uint8(t)}
}

// Message is anything that lives inside a frame (or, for rpc calls, after a
// call id byte). Serialize writes the payload only; the container writes the
// frame around it.
type Message interface {
	Tag() Tag
	Serialize(w *hazel.Writer, dir Direction)
}

// UnknownMessage keeps the raw payload of a tag nobody registered (or that
// failed to decode), so relaying it re-serializes byte for byte.
type UnknownMessage struct {
	MessageTag Tag
	Data       []byte
}

func (m *UnknownMessage) Tag() Tag { return m.MessageTag }

func (m *UnknownMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Write(m.Data)
}

func writeChildren(w *hazel.Writer, children []Message, dir Direction) {
	for _, child := range children {
		w.Begin(child.Tag().ID)
		child.Serialize(w, dir)
		w.End()
	}
}

// Size returns the framed size of m.
func Size(m Message, dir Direction) int {
	w := hazel.NewWriter()
	w.Begin(m.Tag().ID)
	m.Serialize(w, dir)
	w.End()
	return w.Len()
}
