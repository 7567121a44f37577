// Package room is the replicated game state: a room of players, the
// components they and the room own, and the game data stream that keeps
// every replica in step.
//
// A Room is not safe for concurrent use. Whoever owns the connection owns
// the room and calls into it from one goroutine.
package room

import (
	"io"
	"slices"
	"time"

	"github.com/blukai/skeldparty/internal/emitter"
	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/phuslu/log"
)

// RoomObjectID is the owner id of components owned by the room.
const RoomObjectID int32 = -2

// NoPlayer is the player id of a player that did not spawn yet.
const NoPlayer uint8 = 0xff

// maxBatchSize bounds the framed size of the messages in a single outbound
// GameData.
const maxBatchSize = 1024

type Config struct {
	Code     protocol.Code
	SelfID   int32
	HostID   int32
	Settings protocol.GameOptions
	Prefabs  Prefabs
	Logger   *log.Logger
}

type Room struct {
	code     protocol.Code
	selfID   int32
	hostID   int32
	Settings protocol.GameOptions
	Public   bool
	Started  bool

	objects    map[int32]Heritable
	netobjects map[uint32]Component
	despawned  map[uint32]struct{}
	components []Component
	spawned    []*SpawnedObject
	netIDs     uint32
	prefabs    Prefabs

	gameData   *GameData
	voteBan    *VoteBanSystem
	lobby      *LobbyBehaviour
	meetingHud *MeetingHud
	shipStatus *ShipStatus

	stream   []protocol.Message
	streamTo map[int32][]protocol.Message

	events *emitter.Emitter
	logger *log.Logger
}

func New(cfg Config) *Room {
	if cfg.Prefabs == nil {
		cfg.Prefabs = DefaultPrefabs()
	}
	if cfg.Settings.Version == 0 {
		cfg.Settings = protocol.DefaultGameOptions()
	}
	if cfg.Logger == nil {
		tmp := log.DefaultLogger
		cfg.Logger = &tmp
		cfg.Logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	r := &Room{
		code:       cfg.Code,
		selfID:     cfg.SelfID,
		hostID:     cfg.HostID,
		Settings:   cfg.Settings,
		netobjects: make(map[uint32]Component),
		despawned:  make(map[uint32]struct{}),
		prefabs:    cfg.Prefabs,
		streamTo:   make(map[int32][]protocol.Message),
		events:     emitter.New(),
		logger:     cfg.Logger,
	}
	r.objects = map[int32]Heritable{RoomObjectID: r}
	return r
}

func (r *Room) Code() protocol.Code { return r.code }
func (r *Room) SelfID() int32       { return r.selfID }
func (r *Room) HostID() int32       { return r.hostID }

func (r *Room) SetCode(code protocol.Code) { r.code = code }
func (r *Room) SetSelfID(id int32)         { r.selfID = id }

// SetHostID records a host change. The netid counter carries on from the
// highest netid seen so a new host never reuses one.
func (r *Room) SetHostID(id int32) {
	if id == r.hostID {
		return
	}
	from := r.hostID
	r.hostID = id
	r.emit(HostChangeEvent{From: from, To: id})
}

// IsHost reports whether this peer is the host. A server mirror (self id 0)
// never is.
func (r *Room) IsHost() bool {
	return r.selfID != 0 && r.selfID == r.hostID
}

// IsAuthority reports whether this peer decides the state of things owned
// by ownerID: its own, and the room's when it is the host.
func (r *Room) IsAuthority(ownerID int32) bool {
	if r.selfID == 0 {
		return false
	}
	return ownerID == r.selfID || (ownerID == RoomObjectID && r.IsHost())
}

func (r *Room) Events() *emitter.Emitter { return r.events }

func (r *Room) emit(event any) {
	if err := r.events.Emit(event); err != nil {
		r.logger.Error().Msgf("room listener failed: %v", err)
	}
}

func (r *Room) GameData() *GameData             { return r.gameData }
func (r *Room) VoteBanSystem() *VoteBanSystem   { return r.voteBan }
func (r *Room) LobbyBehaviour() *LobbyBehaviour { return r.lobby }
func (r *Room) MeetingHud() *MeetingHud         { return r.meetingHud }
func (r *Room) ShipStatus() *ShipStatus         { return r.shipStatus }

// Object returns the heritable with id, the room for RoomObjectID.
func (r *Room) Object(id int32) Heritable {
	return r.objects[id]
}

func (r *Room) Player(clientID int32) *PlayerData {
	p, _ := r.objects[clientID].(*PlayerData)
	return p
}

// Players returns the players ordered by client id.
func (r *Room) Players() []*PlayerData {
	players := make([]*PlayerData, 0, len(r.objects)-1)
	for _, obj := range r.objects {
		if p, ok := obj.(*PlayerData); ok {
			players = append(players, p)
		}
	}
	slices.SortFunc(players, func(a, b *PlayerData) int {
		return int(a.clientID) - int(b.clientID)
	})
	return players
}

// PlayerByID finds a player by in-game player id.
func (r *Room) PlayerByID(playerID uint8) *PlayerData {
	for _, obj := range r.objects {
		if p, ok := obj.(*PlayerData); ok && p.PlayerID() == playerID {
			return p
		}
	}
	return nil
}

// PlayerByNetID finds the player owning the component netID.
func (r *Room) PlayerByNetID(netID uint32) *PlayerData {
	c := r.netobjects[netID]
	if c == nil {
		return nil
	}
	p, _ := c.networkable().Owner().(*PlayerData)
	return p
}

func (r *Room) Component(netID uint32) Component {
	return r.netobjects[netID]
}

// NetObjects returns every live component ordered by netid.
func (r *Room) NetObjects() []Component {
	out := make([]Component, 0, len(r.netobjects))
	for _, c := range r.netobjects {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Component) int {
		return int(int64(a.NetID()) - int64(b.NetID()))
	})
	return out
}

// NetIDCounter is the last netid handed out or seen.
func (r *Room) NetIDCounter() uint32 {
	return r.netIDs
}

// AddPlayer adds a client to the room. Adding a known client returns the
// existing player.
func (r *Room) AddPlayer(clientID int32) *PlayerData {
	if p := r.Player(clientID); p != nil {
		return p
	}

	p := &PlayerData{room: r, clientID: clientID}
	r.objects[clientID] = p
	r.emit(PlayerJoinEvent{Player: p})
	return p
}

// RemovePlayer despawns the client's components and drops it from the room.
func (r *Room) RemovePlayer(clientID int32) {
	p := r.Player(clientID)
	if p == nil {
		return
	}

	// the roster entry is found through the control, look it up first
	info := p.Info()
	for _, c := range slices.Clone(p.components) {
		if c != nil {
			r.despawn(c, r.IsHost())
		}
	}
	if info != nil && r.gameData != nil {
		r.gameData.markDisconnected(info.PlayerID)
	}

	delete(r.objects, clientID)
	r.emit(PlayerLeaveEvent{Player: p})
}

// Enqueue queues a game data message for every other member.
func (r *Room) Enqueue(m protocol.Message) {
	r.stream = append(r.stream, m)
}

// EnqueueTo queues a game data message for a single member.
func (r *Room) EnqueueTo(recipient int32, m protocol.Message) {
	r.streamTo[recipient] = append(r.streamTo[recipient], m)
}

// Flush drains the outbound streams into root messages ready to be sent:
// per-recipient messages first, then the broadcast stream followed by a Data
// message per dirty component we are authoritative for, in netid order.
// Batches are split so that no GameData carries much more than maxBatchSize
// bytes.
func (r *Room) Flush() []protocol.Message {
	messages := r.stream
	r.stream = nil

	for _, c := range r.NetObjects() {
		n := c.networkable()
		if n.dirtyBit == 0 {
			continue
		}
		if !n.authoritative() {
			// not ours to send
			n.dirtyBit = 0
			continue
		}

		w := hazel.NewWriter()
		if c.Serialize(w, false) {
			messages = append(messages, &protocol.DataMessage{NetID: c.NetID(), Data: w.Bytes()})
		}
	}

	// a newcomer gets its replayed spawns before anything that refers to
	// them
	var out []protocol.Message
	recipients := make([]int32, 0, len(r.streamTo))
	for id := range r.streamTo {
		recipients = append(recipients, id)
	}
	slices.Sort(recipients)
	for _, id := range recipients {
		for _, batch := range batches(r.streamTo[id]) {
			out = append(out, &protocol.GameDataToMessage{Code: r.code, Recipient: id, Children: batch})
		}
		delete(r.streamTo, id)
	}

	for _, batch := range batches(messages) {
		out = append(out, &protocol.GameDataMessage{Code: r.code, Children: batch})
	}
	return out
}

func batches(messages []protocol.Message) [][]protocol.Message {
	var (
		out  [][]protocol.Message
		cur  []protocol.Message
		size int
	)
	for _, m := range messages {
		// game data layouts do not depend on direction
		n := protocol.Size(m, protocol.Serverbound)
		if len(cur) > 0 && size+n > maxBatchSize {
			out = append(out, cur)
			cur, size = nil, 0
		}
		cur = append(cur, m)
		size += n
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// FixedUpdate advances every component by dt.
func (r *Room) FixedUpdate(dt time.Duration) {
	for _, c := range r.NetObjects() {
		if c.networkable().Alive() {
			c.FixedUpdate(dt)
		}
	}
}
