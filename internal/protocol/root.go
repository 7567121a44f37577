package protocol

import (
	"fmt"
	"net/netip"

	"github.com/blukai/skeldparty/internal/hazel"
)

func registerRoot(reg *Registry) {
	reg.Register(RootTag(RootHostGame), decodeHostGame)
	registerDirectional[JoinGameRequest, JoinGameMessage](reg, RootTag(RootJoinGame))
	registerFixed[StartGameMessage](reg, RootTag(RootStartGame))
	registerFixed[RemoveGameMessage](reg, RootTag(RootRemoveGame))
	registerDirectional[RemovePlayerRequest, RemovePlayerMessage](reg, RootTag(RootRemovePlayer))
	reg.Register(RootTag(RootGameData), decodeGameData)
	reg.Register(RootTag(RootGameDataTo), decodeGameDataTo)
	registerFixed[JoinedGameMessage](reg, RootTag(RootJoinedGame))
	registerFixed[EndGameMessage](reg, RootTag(RootEndGame))
	registerFixed[AlterGameMessage](reg, RootTag(RootAlterGame))
	registerFixed[KickPlayerMessage](reg, RootTag(RootKickPlayer))
	registerFixed[WaitForHostMessage](reg, RootTag(RootWaitForHost))
	registerFixed[RedirectMessage](reg, RootTag(RootRedirect))
}

// HostGameRequest asks the server to create a game.
type HostGameRequest struct {
	Options GameOptions
}

func (m *HostGameRequest) Tag() Tag { return RootTag(RootHostGame) }

func (m *HostGameRequest) Serialize(w *hazel.Writer, _ Direction) {
	m.Options.Serialize(w)
}

// HostGameMessage tells the requester the code of its new game.
type HostGameMessage struct {
	Code Code
}

func (m *HostGameMessage) Tag() Tag { return RootTag(RootHostGame) }

func (m *HostGameMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
}

func decodeHostGame(r *hazel.Reader, dir Direction, _ *Registry) (Message, error) {
	if dir == Clientbound {
		m := &HostGameMessage{Code: Code(r.Int32())}
		if r.Err() != nil {
			return nil, r.Err()
		}
		return m, nil
	}

	options, err := ReadGameOptions(r)
	if err != nil {
		return nil, err
	}
	return &HostGameRequest{Options: options}, nil
}

type JoinGameRequest struct {
	Code Code
}

func (m *JoinGameRequest) Tag() Tag { return RootTag(RootJoinGame) }

func (m *JoinGameRequest) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
}

func (m *JoinGameRequest) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
}

// JoinGameMessage is broadcast to the members of a game when someone joins.
type JoinGameMessage struct {
	Code     Code
	ClientID int32
	HostID   int32
}

func (m *JoinGameMessage) Tag() Tag { return RootTag(RootJoinGame) }

func (m *JoinGameMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
	w.Int32(m.ClientID)
	w.Int32(m.HostID)
}

func (m *JoinGameMessage) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
	m.ClientID = r.Int32()
	m.HostID = r.Int32()
}

type StartGameMessage struct {
	Code Code
}

func (m *StartGameMessage) Tag() Tag { return RootTag(RootStartGame) }

func (m *StartGameMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
}

func (m *StartGameMessage) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
}

type RemoveGameMessage struct {
	Reason DisconnectReason
}

func (m *RemoveGameMessage) Tag() Tag { return RootTag(RootRemoveGame) }

func (m *RemoveGameMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Uint8(uint8(m.Reason))
}

func (m *RemoveGameMessage) deserialize(r *hazel.Reader) {
	m.Reason = DisconnectReason(r.Uint8())
}

// RemovePlayerRequest is sent by the host to remove someone.
type RemovePlayerRequest struct {
	Code     Code
	ClientID int32
	Reason   DisconnectReason
}

func (m *RemovePlayerRequest) Tag() Tag { return RootTag(RootRemovePlayer) }

func (m *RemovePlayerRequest) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
	w.Packed(m.ClientID)
	w.Uint8(uint8(m.Reason))
}

func (m *RemovePlayerRequest) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
	m.ClientID = r.Packed()
	m.Reason = DisconnectReason(r.Uint8())
}

// RemovePlayerMessage tells the remaining members who left and who hosts now.
type RemovePlayerMessage struct {
	Code     Code
	ClientID int32
	HostID   int32
	Reason   DisconnectReason
}

func (m *RemovePlayerMessage) Tag() Tag { return RootTag(RootRemovePlayer) }

func (m *RemovePlayerMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
	w.Packed(m.ClientID)
	w.Packed(m.HostID)
	w.Uint8(uint8(m.Reason))
}

func (m *RemovePlayerMessage) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
	m.ClientID = r.Packed()
	m.HostID = r.Packed()
	m.Reason = DisconnectReason(r.Uint8())
}

// GameDataMessage carries game data messages for every member of a game.
type GameDataMessage struct {
	Code     Code
	Children []Message
}

func (m *GameDataMessage) Tag() Tag { return RootTag(RootGameData) }

func (m *GameDataMessage) Serialize(w *hazel.Writer, dir Direction) {
	w.Int32(int32(m.Code))
	writeChildren(w, m.Children, dir)
}

func decodeGameData(r *hazel.Reader, dir Direction, reg *Registry) (Message, error) {
	m := &GameDataMessage{Code: Code(r.Int32())}
	if r.Err() != nil {
		return nil, r.Err()
	}

	var err error
	m.Children, err = reg.DecodeChildren(NamespaceGameData, r, dir)
	return m, err
}

// GameDataToMessage carries game data messages for a single recipient.
type GameDataToMessage struct {
	Code      Code
	Recipient int32
	Children  []Message
}

func (m *GameDataToMessage) Tag() Tag { return RootTag(RootGameDataTo) }

func (m *GameDataToMessage) Serialize(w *hazel.Writer, dir Direction) {
	w.Int32(int32(m.Code))
	w.Packed(m.Recipient)
	writeChildren(w, m.Children, dir)
}

func decodeGameDataTo(r *hazel.Reader, dir Direction, reg *Registry) (Message, error) {
	m := &GameDataToMessage{
		Code:      Code(r.Int32()),
		Recipient: r.Packed(),
	}
	if r.Err() != nil {
		return nil, r.Err()
	}

	var err error
	m.Children, err = reg.DecodeChildren(NamespaceGameData, r, dir)
	return m, err
}

// JoinedGameMessage is the reply to a successful join. Others lists the
// members that were there before the joiner.
type JoinedGameMessage struct {
	Code     Code
	ClientID int32
	HostID   int32
	Others   []int32
}

func (m *JoinedGameMessage) Tag() Tag { return RootTag(RootJoinedGame) }

func (m *JoinedGameMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
	w.Int32(m.ClientID)
	w.Int32(m.HostID)
	w.Upacked(uint32(len(m.Others)))
	for _, id := range m.Others {
		w.Packed(id)
	}
}

func (m *JoinedGameMessage) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
	m.ClientID = r.Int32()
	m.HostID = r.Int32()
	n := int(r.Upacked())
	m.Others = nil
	for i := 0; i < n && r.Err() == nil; i++ {
		m.Others = append(m.Others, r.Packed())
	}
}

type EndGameMessage struct {
	Code   Code
	Reason GameOverReason
	ShowAd bool
}

func (m *EndGameMessage) Tag() Tag { return RootTag(RootEndGame) }

func (m *EndGameMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
	w.Uint8(uint8(m.Reason))
	w.Bool(m.ShowAd)
}

func (m *EndGameMessage) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
	m.Reason = GameOverReason(r.Uint8())
	m.ShowAd = r.Bool()
}

// AlterGameMessage changes a game property. The only known alteration is
// privacy, where Value is 1 for public.
type AlterGameMessage struct {
	Code  Code
	Alter uint8
	Value uint8
}

func (m *AlterGameMessage) Tag() Tag { return RootTag(RootAlterGame) }

func (m *AlterGameMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
	w.Uint8(m.Alter)
	w.Uint8(m.Value)
}

func (m *AlterGameMessage) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
	m.Alter = r.Uint8()
	m.Value = r.Uint8()
}

type KickPlayerMessage struct {
	Code     Code
	ClientID int32
	Banned   bool
}

func (m *KickPlayerMessage) Tag() Tag { return RootTag(RootKickPlayer) }

func (m *KickPlayerMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
	w.Packed(m.ClientID)
	w.Bool(m.Banned)
}

func (m *KickPlayerMessage) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
	m.ClientID = r.Packed()
	m.Banned = r.Bool()
}

type WaitForHostMessage struct {
	Code     Code
	ClientID int32
}

func (m *WaitForHostMessage) Tag() Tag { return RootTag(RootWaitForHost) }

func (m *WaitForHostMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(int32(m.Code))
	w.Int32(m.ClientID)
}

func (m *WaitForHostMessage) deserialize(r *hazel.Reader) {
	m.Code = Code(r.Int32())
	m.ClientID = r.Int32()
}

// RedirectMessage points the client at another server. Only ipv4 addresses
// fit on the wire.
type RedirectMessage struct {
	Addr netip.AddrPort
}

func (m *RedirectMessage) Tag() Tag { return RootTag(RootRedirect) }

func (m *RedirectMessage) Serialize(w *hazel.Writer, _ Direction) {
	ip := m.Addr.Addr().As4()
	w.Write(ip[:])
	w.Uint16(m.Addr.Port())
}

func (m *RedirectMessage) deserialize(r *hazel.Reader) {
	var ip [4]byte
	copy(ip[:], r.Bytes(4))
	port := r.Uint16()
	m.Addr = netip.AddrPortFrom(netip.AddrFrom4(ip), port)
}

func (m *RedirectMessage) String() string {
	return fmt.Sprintf("redirect to %s", m.Addr)
}
