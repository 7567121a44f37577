package protocol

import (
	"fmt"

	"github.com/blukai/skeldparty/internal/hazel"
)

const GameOptionsVersion = 4

type MapID uint8

const (
	MapSkeld MapID = iota
	MapMira
	MapPolus
	MapDleks
	MapAirship
)

// GameOptions travel length-prefixed. Fields past the version a sender knows
// about are absent; readers leave them at their defaults.
type GameOptions struct {
	Version               uint8
	MaxPlayers            uint8
	Keywords              uint32
	Map                   MapID
	PlayerSpeedModifier   float32
	CrewLightModifier     float32
	ImpostorLightModifier float32
	KillCooldown          float32
	NumCommonTasks        uint8
	NumLongTasks          uint8
	NumShortTasks         uint8
	NumEmergencyMeetings  int32
	NumImpostors          uint8
	KillDistance          uint8
	DiscussionTime        int32
	VotingTime            int32
	IsDefaults            bool

	// v2
	EmergencyCooldown uint8

	// v3
	ConfirmImpostor bool
	VisualTasks     bool

	// v4
	AnonymousVotes bool
	TaskBarUpdates uint8
}

func DefaultGameOptions() GameOptions {
	return GameOptions{
		Version:               GameOptionsVersion,
		MaxPlayers:            10,
		Keywords:              1, // other
		Map:                   MapSkeld,
		PlayerSpeedModifier:   1,
		CrewLightModifier:     1,
		ImpostorLightModifier: 1.5,
		KillCooldown:          15,
		NumCommonTasks:        1,
		NumLongTasks:          1,
		NumShortTasks:         2,
		NumEmergencyMeetings:  1,
		NumImpostors:          1,
		KillDistance:          1,
		DiscussionTime:        15,
		VotingTime:            120,
		IsDefaults:            true,
		EmergencyCooldown:     15,
		ConfirmImpostor:       true,
		VisualTasks:           true,
	}
}

func (o *GameOptions) Serialize(w *hazel.Writer) {
	b := hazel.NewWriter()
	b.Uint8(o.Version)
	b.Uint8(o.MaxPlayers)
	b.Uint32(o.Keywords)
	b.Uint8(uint8(o.Map))
	b.Float32(o.PlayerSpeedModifier)
	b.Float32(o.CrewLightModifier)
	b.Float32(o.ImpostorLightModifier)
	b.Float32(o.KillCooldown)
	b.Uint8(o.NumCommonTasks)
	b.Uint8(o.NumLongTasks)
	b.Uint8(o.NumShortTasks)
	b.Int32(o.NumEmergencyMeetings)
	b.Uint8(o.NumImpostors)
	b.Uint8(o.KillDistance)
	b.Int32(o.DiscussionTime)
	b.Int32(o.VotingTime)
	b.Bool(o.IsDefaults)
	if o.Version >= 2 {
		b.Uint8(o.EmergencyCooldown)
	}
	if o.Version >= 3 {
		b.Bool(o.ConfirmImpostor)
		b.Bool(o.VisualTasks)
	}
	if o.Version >= 4 {
		b.Bool(o.AnonymousVotes)
		b.Uint8(o.TaskBarUpdates)
	}
	w.BytesAndSize(b.Bytes())
}

func ReadGameOptions(r *hazel.Reader) (GameOptions, error) {
	raw := r.BytesAndSize()
	if r.Err() != nil {
		return GameOptions{}, fmt.Errorf("could not read game options: %w", r.Err())
	}

	b := hazel.NewReader(raw)
	o := GameOptions{}
	o.Version = b.Uint8()
	o.MaxPlayers = b.Uint8()
	o.Keywords = b.Uint32()
	o.Map = MapID(b.Uint8())
	o.PlayerSpeedModifier = b.Float32()
	o.CrewLightModifier = b.Float32()
	o.ImpostorLightModifier = b.Float32()
	o.KillCooldown = b.Float32()
	o.NumCommonTasks = b.Uint8()
	o.NumLongTasks = b.Uint8()
	o.NumShortTasks = b.Uint8()
	o.NumEmergencyMeetings = b.Int32()
	o.NumImpostors = b.Uint8()
	o.KillDistance = b.Uint8()
	o.DiscussionTime = b.Int32()
	o.VotingTime = b.Int32()
	o.IsDefaults = b.Bool()
	if o.Version >= 2 {
		o.EmergencyCooldown = b.Uint8()
	}
	if o.Version >= 3 {
		o.ConfirmImpostor = b.Bool()
		o.VisualTasks = b.Bool()
	}
	if o.Version >= 4 {
		o.AnonymousVotes = b.Bool()
		o.TaskBarUpdates = b.Uint8()
	}
	if b.Err() != nil {
		return GameOptions{}, fmt.Errorf("could not read game options v%d: %w", o.Version, b.Err())
	}
	return o, nil
}
