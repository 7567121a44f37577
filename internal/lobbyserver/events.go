package lobbyserver

import (
	"github.com/blukai/skeldparty/internal/protocol"
)

type ClientConnectEvent struct {
	ClientID int32
	Username string
	Version  protocol.Version
}

// ClientDisconnectEvent fires once per client, however it went away.
type ClientDisconnectEvent struct {
	ClientID int32
	Reason   protocol.DisconnectReason
	TimedOut bool
}

type GameCreatedEvent struct {
	Code protocol.Code
}

type GameRemovedEvent struct {
	Code protocol.Code
}

type PlayerJoinedEvent struct {
	Code     protocol.Code
	ClientID int32
}

type PlayerLeftEvent struct {
	Code     protocol.Code
	ClientID int32
	HostID   int32
	Reason   protocol.DisconnectReason
}
