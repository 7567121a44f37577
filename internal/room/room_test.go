package room_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/blukai/skeldparty/internal/emitter"
	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/blukai/skeldparty/internal/room"
	"github.com/blukai/skeldparty/internal/room/systems"
	"github.com/matryer/is"
)

const hostID, guestID int32 = 1, 2

// deliver flushes from and passes its game data over the wire codec to the
// other rooms.
func deliver(t *testing.T, from *room.Room, to ...*room.Room) []protocol.Message {
	t.Helper()
	is := is.New(t)

	flushed := from.Flush()
	for _, m := range flushed {
		data := protocol.EncodePacket(&protocol.ReliablePacket{Nonce: 1, Children: []protocol.Message{m}}, protocol.Serverbound)
		p, err := protocol.DecodePacket(data, protocol.Serverbound, protocol.DefaultRegistry())
		is.NoErr(err)

		switch root := p.(*protocol.ReliablePacket).Children[0].(type) {
		case *protocol.GameDataMessage:
			for _, r := range to {
				for _, child := range root.Children {
					r.HandleGameData(child)
				}
			}
		case *protocol.GameDataToMessage:
			for _, r := range to {
				if r.SelfID() != root.Recipient {
					continue
				}
				for _, child := range root.Children {
					r.HandleGameData(child)
				}
			}
		default:
			t.Fatalf("unexpected %T", root)
		}
	}
	return flushed
}

// lobby is a host with its player spawned and a guest that entered the game
// and got everything replayed.
func lobby(t *testing.T) (host, guest *room.Room) {
	t.Helper()
	is := is.New(t)

	host = room.New(room.Config{Code: 42, SelfID: hostID, HostID: hostID})
	is.True(host.SpawnPrefab(protocol.SpawnGameData, room.RoomObjectID, protocol.SpawnFlagNone) != nil)
	is.True(host.SpawnPlayer(hostID) != nil)
	host.Flush()

	guest = room.New(room.Config{Code: 42, SelfID: guestID, HostID: hostID})
	host.AddPlayer(guestID)
	host.HandleGameData(&protocol.SceneChangeMessage{ClientID: guestID, Scene: protocol.SceneOnlineGame})
	deliver(t, host, guest)
	return host, guest
}

// vec builds vectors the quantized codec carries exactly.
func vec(x, y float32) hazel.Vector2 {
	return hazel.Vector2{X: x, Y: y}
}

func netIDs(r *room.Room) []uint32 {
	var out []uint32
	for _, c := range r.NetObjects() {
		out = append(out, c.NetID())
	}
	return out
}

func TestJoinReplaysSpawns(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)

	is.Equal(netIDs(host), []uint32{1, 2, 3, 4, 5, 6, 7, 8})
	is.Equal(netIDs(guest), netIDs(host))
	is.Equal(guest.NetIDCounter(), uint32(8))

	is.Equal(guest.Player(hostID).PlayerID(), uint8(0))
	is.Equal(guest.Player(guestID).PlayerID(), uint8(1))
	is.True(guest.Player(guestID).Spawned())
	is.True(guest.Player(guestID).IsSelf())
	is.True(guest.Player(hostID).IsHost())

	is.True(guest.GameData() != nil)
	is.True(guest.GameData().Player(0) != nil)
	is.True(guest.GameData().Player(1) != nil)
	is.True(guest.VoteBanSystem() != nil)
}

func TestFlushSendsReplayBeforeBroadcast(t *testing.T) {
	is := is.New(t)

	host := room.New(room.Config{Code: 42, SelfID: hostID, HostID: hostID})
	host.SpawnPrefab(protocol.SpawnGameData, room.RoomObjectID, protocol.SpawnFlagNone)
	host.Flush()

	host.AddPlayer(guestID)
	host.HandleGameData(&protocol.SceneChangeMessage{ClientID: guestID, Scene: protocol.SceneOnlineGame})

	out := host.Flush()
	is.Equal(len(out), 2)
	to, ok := out[0].(*protocol.GameDataToMessage)
	is.True(ok)
	is.Equal(to.Recipient, guestID)
	_, ok = out[1].(*protocol.GameDataMessage)
	is.True(ok)
}

func TestNetIDsAreContiguous(t *testing.T) {
	is := is.New(t)

	host, _ := lobby(t)
	before := host.NetIDCounter()

	obj := host.SpawnPrefab(protocol.SpawnShipStatus, room.RoomObjectID, protocol.SpawnFlagNone)
	is.True(obj != nil)
	lobbyObj := host.SpawnPrefab(protocol.SpawnLobbyBehaviour, room.RoomObjectID, protocol.SpawnFlagNone)
	is.True(lobbyObj != nil)

	is.Equal(obj.Components[0].NetID(), before+1)
	is.Equal(lobbyObj.Components[0].NetID(), before+2)
	is.Equal(host.NetIDCounter(), before+2)
}

func TestOnlyHostSpawns(t *testing.T) {
	is := is.New(t)

	_, guest := lobby(t)
	is.Equal(guest.SpawnPrefab(protocol.SpawnShipStatus, room.RoomObjectID, protocol.SpawnFlagNone), nil)
	is.Equal(guest.SpawnPlayer(3), nil)
}

func TestSpawnIsIdempotent(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)
	obj := host.SpawnPrefab(protocol.SpawnLobbyBehaviour, room.RoomObjectID, protocol.SpawnFlagNone)
	out := deliver(t, host, guest)
	is.Equal(len(guest.NetObjects()), len(host.NetObjects()))

	// a redelivery changes nothing
	for _, m := range out {
		for _, child := range m.(*protocol.GameDataMessage).Children {
			guest.HandleGameData(child)
		}
	}
	is.Equal(len(guest.NetObjects()), len(host.NetObjects()))
	is.True(guest.Component(obj.Components[0].NetID()) != nil)
}

func TestDespawnNullsSlot(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)
	transform := host.Player(guestID).Transform()
	netID := transform.NetID()

	host.DespawnComponent(transform)
	deliver(t, host, guest)

	p := guest.Player(guestID)
	is.Equal(p.Transform(), nil)
	is.Equal(len(p.Components()), 3)
	is.Equal(p.Components()[2], nil)
	is.True(p.Control() != nil)
	is.True(!p.Spawned())
	is.Equal(guest.Component(netID), nil)

	// a late spawn of a despawned netid stays dead
	guest.HandleGameData(&protocol.SpawnMessage{
		SpawnType: protocol.SpawnPlayer,
		OwnerID:   guestID,
		Components: []protocol.ComponentData{
			{NetID: 6, Data: []byte{0, 1}},
			{NetID: 7, Data: []byte{}},
			{NetID: netID, Data: make([]byte, 10)},
		},
	})
	is.Equal(guest.Component(netID), nil)

	// despawning twice does nothing
	host.DespawnComponent(transform)
	is.Equal(len(host.Flush()), 0)
}

func TestUnknownNetIDIsIgnored(t *testing.T) {
	is := is.New(t)

	_, guest := lobby(t)
	before := netIDs(guest)

	guest.HandleGameData(&protocol.DataMessage{NetID: 99, Data: []byte{1, 2, 3}})
	guest.HandleGameData(&protocol.RpcMessage{NetID: 99, Call: &protocol.SetNameMessage{Name: "x"}})
	guest.HandleGameData(&protocol.DespawnMessage{NetID: 99})

	is.Equal(netIDs(guest), before)
}

func TestMalformedSpawnIsDropped(t *testing.T) {
	is := is.New(t)

	// like the server's copy of a game, which decodes whatever gets relayed
	mirror := room.New(room.Config{Code: 42})

	w := hazel.NewWriter()
	w.Upacked(1 << 28)
	mirror.HandleGameData(&protocol.SpawnMessage{
		SpawnType:  protocol.SpawnMeetingHud,
		OwnerID:    room.RoomObjectID,
		Components: []protocol.ComponentData{{NetID: 1, Data: w.Bytes()}},
	})
	is.True(mirror.MeetingHud() == nil)
	is.Equal(len(mirror.NetObjects()), 0)

	// a truncated player does not reach the roster either
	mirror.HandleGameData(&protocol.SpawnMessage{
		SpawnType: protocol.SpawnPlayer,
		OwnerID:   guestID,
		Components: []protocol.ComponentData{
			{NetID: 2, Data: []byte{}},
			{NetID: 3, Data: []byte{}},
			{NetID: 4, Data: []byte{}},
		},
	})
	is.True(mirror.Player(guestID) == nil)
	is.Equal(len(mirror.NetObjects()), 0)

	// the netids are still free for a well formed spawn
	host := room.New(room.Config{Code: 42, SelfID: hostID, HostID: hostID})
	host.SpawnPrefab(protocol.SpawnMeetingHud, room.RoomObjectID, protocol.SpawnFlagNone)
	for _, m := range children(t, host.Flush()) {
		mirror.HandleGameData(m)
	}
	is.True(mirror.MeetingHud() != nil)
	is.Equal(netIDs(mirror), []uint32{1})
}

// children passes flushed game data over the wire codec and returns what it
// carried, in order.
func children(t *testing.T, flushed []protocol.Message) []protocol.Message {
	t.Helper()
	is := is.New(t)

	var out []protocol.Message
	for _, m := range flushed {
		data := protocol.EncodePacket(&protocol.ReliablePacket{Nonce: 1, Children: []protocol.Message{m}}, protocol.Serverbound)
		p, err := protocol.DecodePacket(data, protocol.Serverbound, protocol.DefaultRegistry())
		is.NoErr(err)

		switch root := p.(*protocol.ReliablePacket).Children[0].(type) {
		case *protocol.GameDataMessage:
			out = append(out, root.Children...)
		case *protocol.GameDataToMessage:
			out = append(out, root.Children...)
		}
	}
	return out
}

// state describes everything a replica holds: each live component in spawn
// form and each player's slots.
func state(r *room.Room) string {
	var b strings.Builder
	for _, c := range r.NetObjects() {
		w := hazel.NewWriter()
		c.Serialize(w, true)
		fmt.Fprintf(&b, "%d %s %x\n", c.NetID(), c.Classname(), w.Bytes())
	}
	for _, p := range r.Players() {
		fmt.Fprintf(&b, "player %d:", p.ClientID())
		for _, c := range p.Components() {
			if c == nil {
				b.WriteString(" -")
				continue
			}
			fmt.Fprintf(&b, " %d", c.NetID())
		}
		b.WriteString("\n")
	}
	return b.String()
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	is := is.New(t)

	host := room.New(room.Config{Code: 42, SelfID: hostID, HostID: hostID})
	host.SpawnPrefab(protocol.SpawnGameData, room.RoomObjectID, protocol.SpawnFlagNone)
	host.SpawnPrefab(protocol.SpawnShipStatus, room.RoomObjectID, protocol.SpawnFlagNone)
	host.SpawnPlayer(hostID)
	host.AddPlayer(guestID)
	host.SpawnPlayer(guestID)
	spawns := children(t, host.Flush())

	host.Player(hostID).Control().SetName("red")
	host.ShipStatus().CloseDoorsOfType(protocol.SystemCafeteria)
	transform := host.Player(guestID).Transform()
	host.DespawnComponent(transform)
	changes := children(t, host.Flush())

	var data, despawns int
	for _, m := range changes {
		switch m.(type) {
		case *protocol.DataMessage:
			data++
		case *protocol.DespawnMessage:
			despawns++
		}
	}
	// roster and doors
	is.Equal(data, 2)
	is.Equal(despawns, 1)

	once := room.New(room.Config{Code: 42, SelfID: guestID, HostID: hostID})
	twice := room.New(room.Config{Code: 42, SelfID: guestID, HostID: hostID})
	for _, m := range append(spawns, changes...) {
		once.HandleGameData(m)
		twice.HandleGameData(m)
		twice.HandleGameData(m)
	}

	is.Equal(netIDs(twice), netIDs(once))
	is.True(twice.Component(transform.NetID()) == nil)
	slots := twice.Player(guestID).Components()
	is.Equal(len(slots), 3)
	is.True(slots[2] == nil)
	is.Equal(twice.Player(hostID).Info().Name, "red")
	doors := twice.ShipStatus().System(protocol.SystemDoors).(*systems.AutoDoors)
	is.True(!doors.Doors[0].Open)
	is.True(doors.Doors[1].Open)

	is.Equal(state(twice), state(once))
}

func TestNameResolvedByHost(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)
	host.Player(hostID).Control().CheckName("red")

	var names []string
	emitter.On(guest.Events(), func(e room.PlayerSetNameEvent) {
		names = append(names, e.Name)
	})

	guest.Player(guestID).Control().CheckName("red")
	// the guest asks and changes nothing itself
	is.Equal(guest.GameData().Player(1).Name, "")
	deliver(t, guest, host)
	deliver(t, host, guest)

	is.Equal(names, []string{"red", "red 1"})
	is.Equal(guest.GameData().Player(0).Name, "red")
	is.Equal(guest.GameData().Player(1).Name, "red 1")
	is.Equal(host.GameData().Player(1).Name, "red 1")

	// applying the host's rpcs queues nothing
	is.Equal(len(guest.Flush()), 0)
}

func TestOwnerOnlyActions(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)

	// not ours
	guest.Player(hostID).Control().CheckName("blue")
	guest.Player(hostID).Control().SendChat("hi")
	is.Equal(len(guest.Flush()), 0)

	var chat []string
	emitter.On(host.Events(), func(e room.PlayerChatEvent) {
		chat = append(chat, e.Message)
	})
	guest.Player(guestID).Control().SendChat("hello")
	deliver(t, guest, host)
	is.Equal(chat, []string{"hello"})
}

func TestMovement(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)
	pos := guest.Player(guestID).Transform()
	pos.Move(vec(50, -50), vec(-50, 50))
	deliver(t, guest, host)

	got := host.Player(guestID).Transform()
	is.Equal(got.Position, vec(50, -50))
	is.Equal(got.Velocity, vec(-50, 50))

	// the owner ignores data about its own transform
	guest.HandleGameData(&protocol.DataMessage{NetID: pos.NetID(), Data: make([]byte, 10)})
	is.Equal(pos.Position, vec(50, -50))
}

func TestFlushSplitsBatches(t *testing.T) {
	is := is.New(t)

	host, _ := lobby(t)
	ctl := host.Player(hostID).Control()
	for i := 0; i < 10; i++ {
		ctl.SendChat(strings.Repeat("a", 200))
	}

	out := host.Flush()
	is.True(len(out) > 1)

	var n int
	for _, m := range out {
		gd := m.(*protocol.GameDataMessage)
		size := 0
		for _, child := range gd.Children {
			size += protocol.Size(child, protocol.Serverbound)
		}
		is.True(size <= 1024)
		n += len(gd.Children)
	}
	is.Equal(n, 10)
}

func TestRemovePlayer(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)
	host.RemovePlayer(guestID)
	deliver(t, host, guest)

	is.Equal(host.Player(guestID), nil)
	is.Equal(len(host.NetObjects()), 5)
	is.True(host.GameData().Player(1).Flags&protocol.PlayerFlagDisconnected != 0)
	is.True(guest.GameData().Player(1).Flags&protocol.PlayerFlagDisconnected != 0)
	is.Equal(guest.Player(guestID).Control(), nil)
}

func TestMeeting(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)

	var results []room.VotingCompleteEvent
	emitter.On(guest.Events(), func(e room.VotingCompleteEvent) {
		results = append(results, e)
	})

	guest.Player(guestID).Control().ReportDeadBody(protocol.NoBody)
	deliver(t, guest, host)
	is.True(host.MeetingHud() != nil)
	deliver(t, host, guest)

	hud := guest.MeetingHud()
	is.True(hud != nil)
	is.Equal(len(hud.Areas), 2)
	is.True(hud.Areas[1].DidReport)

	hud.CastVote(0)
	deliver(t, guest, host)
	host.MeetingHud().CastVote(0)
	deliver(t, host, guest)

	is.Equal(len(results), 1)
	is.Equal(results[0].Exiled, uint8(0))
	is.True(!results[0].Tie)

	host.FixedUpdate(6 * time.Second)
	is.Equal(host.MeetingHud(), nil)
	deliver(t, host, guest)

	is.Equal(guest.MeetingHud(), nil)
	is.True(guest.GameData().Player(0).Flags&protocol.PlayerFlagDead != 0)
}

func TestMeetingTie(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)
	host.Player(hostID).Control().ReportDeadBody(protocol.NoBody)
	deliver(t, host, guest)

	guest.MeetingHud().CastVote(0)
	deliver(t, guest, host)
	host.MeetingHud().CastVote(1)

	var result room.VotingCompleteEvent
	emitter.On(guest.Events(), func(e room.VotingCompleteEvent) {
		result = e
	})
	deliver(t, host, guest)

	is.True(result.Tie)
	is.Equal(result.Exiled, protocol.NoBody)
}

func TestKickVotes(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)

	var votes []room.KickVoteEvent
	emitter.On(host.Events(), func(e room.KickVoteEvent) {
		votes = append(votes, e)
	})

	guest.VoteBanSystem().AddVote(hostID)
	guest.VoteBanSystem().AddVote(hostID)
	deliver(t, guest, host)

	is.Equal(votes, []room.KickVoteEvent{{Voter: guestID, Target: hostID}})
	is.Equal(host.VoteBanSystem().Votes[hostID], []int32{guestID})
	is.True(!host.VoteBanSystem().Kickable(hostID))
}

func TestShipDoors(t *testing.T) {
	is := is.New(t)

	host, guest := lobby(t)
	host.SpawnPrefab(protocol.SpawnShipStatus, room.RoomObjectID, protocol.SpawnFlagNone)
	deliver(t, host, guest)

	ship := guest.ShipStatus()
	is.True(ship != nil)
	is.Equal(ship.Classname(), "ShipStatus")

	ship.CloseDoorsOfType(protocol.SystemCafeteria)
	deliver(t, guest, host)
	deliver(t, host, guest)

	doors, ok := ship.System(protocol.SystemDoors).(*systems.AutoDoors)
	is.True(ok)
	is.True(!doors.Doors[0].Open)
	is.True(!doors.Doors[3].Open)
	is.True(doors.Doors[1].Open)

	// the guest does not run the ship
	guest.FixedUpdate(11 * time.Second)
	is.True(!doors.Doors[0].Open)

	host.FixedUpdate(11 * time.Second)
	deliver(t, host, guest)
	is.True(doors.Doors[0].Open)
}
