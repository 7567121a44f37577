package protocol

import (
	"fmt"

	"github.com/blukai/skeldparty/internal/hazel"
)

func registerRpc(reg *Registry) {
	registerFixed[PlayAnimationMessage](reg, RpcTag(RpcPlayAnimation))
	registerFixed[CompleteTaskMessage](reg, RpcTag(RpcCompleteTask))
	reg.Register(RpcTag(RpcSyncSettings), decodeSyncSettings)
	registerFixed[SetInfectedMessage](reg, RpcTag(RpcSetInfected))
	registerFixed[ExiledMessage](reg, RpcTag(RpcExiled))
	registerFixed[CheckNameMessage](reg, RpcTag(RpcCheckName))
	registerFixed[SetNameMessage](reg, RpcTag(RpcSetName))
	registerFixed[CheckColorMessage](reg, RpcTag(RpcCheckColor))
	registerFixed[SetColorMessage](reg, RpcTag(RpcSetColor))
	registerFixed[SetHatMessage](reg, RpcTag(RpcSetHat))
	registerFixed[SetSkinMessage](reg, RpcTag(RpcSetSkin))
	registerFixed[ReportDeadBodyMessage](reg, RpcTag(RpcReportDeadBody))
	registerFixed[MurderPlayerMessage](reg, RpcTag(RpcMurderPlayer))
	registerFixed[SendChatMessage](reg, RpcTag(RpcSendChat))
	registerFixed[StartMeetingMessage](reg, RpcTag(RpcStartMeeting))
	registerFixed[SetScannerMessage](reg, RpcTag(RpcSetScanner))
	registerFixed[SendChatNoteMessage](reg, RpcTag(RpcSendChatNote))
	registerFixed[SetPetMessage](reg, RpcTag(RpcSetPet))
	registerFixed[SetStartCounterMessage](reg, RpcTag(RpcSetStartCounter))
	registerFixed[EnterVentMessage](reg, RpcTag(RpcEnterVent))
	registerFixed[ExitVentMessage](reg, RpcTag(RpcExitVent))
	registerFixed[SnapToMessage](reg, RpcTag(RpcSnapTo))
	registerFixed[CloseMeetingMessage](reg, RpcTag(RpcClose))
	registerFixed[VotingCompleteMessage](reg, RpcTag(RpcVotingComplete))
	registerFixed[CastVoteMessage](reg, RpcTag(RpcCastVote))
	registerFixed[ClearVoteMessage](reg, RpcTag(RpcClearVote))
	registerFixed[AddVoteMessage](reg, RpcTag(RpcAddVote))
	registerFixed[CloseDoorsOfTypeMessage](reg, RpcTag(RpcCloseDoorsOfType))
	registerFixed[RepairSystemMessage](reg, RpcTag(RpcRepairSystem))
	registerFixed[SetTasksMessage](reg, RpcTag(RpcSetTasks))
	registerFixed[UpdateGameDataMessage](reg, RpcTag(RpcUpdateGameData))
}

type PlayAnimationMessage struct {
	Animation uint8
}

func (m *PlayAnimationMessage) Tag() Tag                               { return RpcTag(RpcPlayAnimation) }
func (m *PlayAnimationMessage) Serialize(w *hazel.Writer, _ Direction) { w.Uint8(m.Animation) }
func (m *PlayAnimationMessage) deserialize(r *hazel.Reader)            { m.Animation = r.Uint8() }

type CompleteTaskMessage struct {
	TaskIndex uint32
}

func (m *CompleteTaskMessage) Tag() Tag                               { return RpcTag(RpcCompleteTask) }
func (m *CompleteTaskMessage) Serialize(w *hazel.Writer, _ Direction) { w.Upacked(m.TaskIndex) }
func (m *CompleteTaskMessage) deserialize(r *hazel.Reader)            { m.TaskIndex = r.Upacked() }

type SyncSettingsMessage struct {
	Options GameOptions
}

func (m *SyncSettingsMessage) Tag() Tag                               { return RpcTag(RpcSyncSettings) }
func (m *SyncSettingsMessage) Serialize(w *hazel.Writer, _ Direction) { m.Options.Serialize(w) }

func decodeSyncSettings(r *hazel.Reader, _ Direction, _ *Registry) (Message, error) {
	options, err := ReadGameOptions(r)
	if err != nil {
		return nil, err
	}
	return &SyncSettingsMessage{Options: options}, nil
}

// SetInfectedMessage lists the player ids of the impostors.
type SetInfectedMessage struct {
	Impostors []uint8
}

func (m *SetInfectedMessage) Tag() Tag                               { return RpcTag(RpcSetInfected) }
func (m *SetInfectedMessage) Serialize(w *hazel.Writer, _ Direction) { w.BytesAndSize(m.Impostors) }

func (m *SetInfectedMessage) deserialize(r *hazel.Reader) {
	m.Impostors = append([]uint8(nil), r.BytesAndSize()...)
}

type ExiledMessage struct{}

func (m *ExiledMessage) Tag() Tag                           { return RpcTag(RpcExiled) }
func (m *ExiledMessage) Serialize(*hazel.Writer, Direction) {}
func (m *ExiledMessage) deserialize(*hazel.Reader)          {}

// CheckNameMessage asks the host to validate (and possibly dedupe) a name.
type CheckNameMessage struct {
	Name string
}

func (m *CheckNameMessage) Tag() Tag                               { return RpcTag(RpcCheckName) }
func (m *CheckNameMessage) Serialize(w *hazel.Writer, _ Direction) { w.Str(m.Name) }
func (m *CheckNameMessage) deserialize(r *hazel.Reader)            { m.Name = r.Str() }

type SetNameMessage struct {
	Name string
}

func (m *SetNameMessage) Tag() Tag                               { return RpcTag(RpcSetName) }
func (m *SetNameMessage) Serialize(w *hazel.Writer, _ Direction) { w.Str(m.Name) }
func (m *SetNameMessage) deserialize(r *hazel.Reader)            { m.Name = r.Str() }

type CheckColorMessage struct {
	Color uint8
}

func (m *CheckColorMessage) Tag() Tag                               { return RpcTag(RpcCheckColor) }
func (m *CheckColorMessage) Serialize(w *hazel.Writer, _ Direction) { w.Uint8(m.Color) }
func (m *CheckColorMessage) deserialize(r *hazel.Reader)            { m.Color = r.Uint8() }

type SetColorMessage struct {
	Color uint8
}

func (m *SetColorMessage) Tag() Tag                               { return RpcTag(RpcSetColor) }
func (m *SetColorMessage) Serialize(w *hazel.Writer, _ Direction) { w.Uint8(m.Color) }
func (m *SetColorMessage) deserialize(r *hazel.Reader)            { m.Color = r.Uint8() }

type SetHatMessage struct {
	Hat uint32
}

func (m *SetHatMessage) Tag() Tag                               { return RpcTag(RpcSetHat) }
func (m *SetHatMessage) Serialize(w *hazel.Writer, _ Direction) { w.Upacked(m.Hat) }
func (m *SetHatMessage) deserialize(r *hazel.Reader)            { m.Hat = r.Upacked() }

type SetSkinMessage struct {
	Skin uint32
}

func (m *SetSkinMessage) Tag() Tag                               { return RpcTag(RpcSetSkin) }
func (m *SetSkinMessage) Serialize(w *hazel.Writer, _ Direction) { w.Upacked(m.Skin) }
func (m *SetSkinMessage) deserialize(r *hazel.Reader)            { m.Skin = r.Upacked() }

// NoBody is the body id of an emergency meeting.
const NoBody uint8 = 0xff

type ReportDeadBodyMessage struct {
	BodyID uint8
}

func (m *ReportDeadBodyMessage) Tag() Tag                               { return RpcTag(RpcReportDeadBody) }
func (m *ReportDeadBodyMessage) Serialize(w *hazel.Writer, _ Direction) { w.Uint8(m.BodyID) }
func (m *ReportDeadBodyMessage) deserialize(r *hazel.Reader)            { m.BodyID = r.Uint8() }

// MurderPlayerMessage names the victim by the netid of its PlayerControl.
type MurderPlayerMessage struct {
	VictimNetID uint32
}

func (m *MurderPlayerMessage) Tag() Tag                               { return RpcTag(RpcMurderPlayer) }
func (m *MurderPlayerMessage) Serialize(w *hazel.Writer, _ Direction) { w.Upacked(m.VictimNetID) }
func (m *MurderPlayerMessage) deserialize(r *hazel.Reader)            { m.VictimNetID = r.Upacked() }

type SendChatMessage struct {
	Message string
}

func (m *SendChatMessage) Tag() Tag                               { return RpcTag(RpcSendChat) }
func (m *SendChatMessage) Serialize(w *hazel.Writer, _ Direction) { w.Str(m.Message) }
func (m *SendChatMessage) deserialize(r *hazel.Reader)            { m.Message = r.Str() }

type StartMeetingMessage struct {
	BodyID uint8
}

func (m *StartMeetingMessage) Tag() Tag                               { return RpcTag(RpcStartMeeting) }
func (m *StartMeetingMessage) Serialize(w *hazel.Writer, _ Direction) { w.Uint8(m.BodyID) }
func (m *StartMeetingMessage) deserialize(r *hazel.Reader)            { m.BodyID = r.Uint8() }

type SetScannerMessage struct {
	Scanning bool
	Seq      uint8
}

func (m *SetScannerMessage) Tag() Tag { return RpcTag(RpcSetScanner) }

func (m *SetScannerMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Bool(m.Scanning)
	w.Uint8(m.Seq)
}

func (m *SetScannerMessage) deserialize(r *hazel.Reader) {
	m.Scanning = r.Bool()
	m.Seq = r.Uint8()
}

type SendChatNoteMessage struct {
	PlayerID uint8
	NoteType uint8
}

func (m *SendChatNoteMessage) Tag() Tag { return RpcTag(RpcSendChatNote) }

func (m *SendChatNoteMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Uint8(m.PlayerID)
	w.Uint8(m.NoteType)
}

func (m *SendChatNoteMessage) deserialize(r *hazel.Reader) {
	m.PlayerID = r.Uint8()
	m.NoteType = r.Uint8()
}

type SetPetMessage struct {
	Pet uint32
}

func (m *SetPetMessage) Tag() Tag                               { return RpcTag(RpcSetPet) }
func (m *SetPetMessage) Serialize(w *hazel.Writer, _ Direction) { w.Upacked(m.Pet) }
func (m *SetPetMessage) deserialize(r *hazel.Reader)            { m.Pet = r.Upacked() }

// SetStartCounterMessage drives the lobby countdown. Time is -1 when the
// countdown stops.
type SetStartCounterMessage struct {
	Seq  uint32
	Time int8
}

func (m *SetStartCounterMessage) Tag() Tag { return RpcTag(RpcSetStartCounter) }

func (m *SetStartCounterMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Upacked(m.Seq)
	w.Int8(m.Time)
}

func (m *SetStartCounterMessage) deserialize(r *hazel.Reader) {
	m.Seq = r.Upacked()
	m.Time = r.Int8()
}

type EnterVentMessage struct {
	VentID uint32
}

func (m *EnterVentMessage) Tag() Tag                               { return RpcTag(RpcEnterVent) }
func (m *EnterVentMessage) Serialize(w *hazel.Writer, _ Direction) { w.Upacked(m.VentID) }
func (m *EnterVentMessage) deserialize(r *hazel.Reader)            { m.VentID = r.Upacked() }

type ExitVentMessage struct {
	VentID uint32
}

func (m *ExitVentMessage) Tag() Tag                               { return RpcTag(RpcExitVent) }
func (m *ExitVentMessage) Serialize(w *hazel.Writer, _ Direction) { w.Upacked(m.VentID) }
func (m *ExitVentMessage) deserialize(r *hazel.Reader)            { m.VentID = r.Upacked() }

type SnapToMessage struct {
	Position hazel.Vector2
	Seq      uint16
}

func (m *SnapToMessage) Tag() Tag { return RpcTag(RpcSnapTo) }

func (m *SnapToMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Vector2(m.Position)
	w.Uint16(m.Seq)
}

func (m *SnapToMessage) deserialize(r *hazel.Reader) {
	m.Position = r.Vector2()
	m.Seq = r.Uint16()
}

// CloseMeetingMessage closes the meeting hud.
type CloseMeetingMessage struct{}

func (m *CloseMeetingMessage) Tag() Tag                           { return RpcTag(RpcClose) }
func (m *CloseMeetingMessage) Serialize(*hazel.Writer, Direction) {}
func (m *CloseMeetingMessage) deserialize(*hazel.Reader)          {}

// VotingCompleteMessage carries one vote state byte per player area. Exiled
// is NoBody when nobody was ejected.
type VotingCompleteMessage struct {
	States []byte
	Exiled uint8
	Tie    bool
}

func (m *VotingCompleteMessage) Tag() Tag { return RpcTag(RpcVotingComplete) }

func (m *VotingCompleteMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.BytesAndSize(m.States)
	w.Uint8(m.Exiled)
	w.Bool(m.Tie)
}

func (m *VotingCompleteMessage) deserialize(r *hazel.Reader) {
	m.States = append([]byte(nil), r.BytesAndSize()...)
	m.Exiled = r.Uint8()
	m.Tie = r.Bool()
}

type CastVoteMessage struct {
	Voter   uint8
	Suspect uint8
}

func (m *CastVoteMessage) Tag() Tag { return RpcTag(RpcCastVote) }

func (m *CastVoteMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Uint8(m.Voter)
	w.Uint8(m.Suspect)
}

func (m *CastVoteMessage) deserialize(r *hazel.Reader) {
	m.Voter = r.Uint8()
	m.Suspect = r.Uint8()
}

type ClearVoteMessage struct{}

func (m *ClearVoteMessage) Tag() Tag                           { return RpcTag(RpcClearVote) }
func (m *ClearVoteMessage) Serialize(*hazel.Writer, Direction) {}
func (m *ClearVoteMessage) deserialize(*hazel.Reader)          {}

// AddVoteMessage is a kick vote: client Voting votes to kick client Target.
type AddVoteMessage struct {
	Voting int32
	Target int32
}

func (m *AddVoteMessage) Tag() Tag { return RpcTag(RpcAddVote) }

func (m *AddVoteMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Int32(m.Voting)
	w.Int32(m.Target)
}

func (m *AddVoteMessage) deserialize(r *hazel.Reader) {
	m.Voting = r.Int32()
	m.Target = r.Int32()
}

type CloseDoorsOfTypeMessage struct {
	System SystemType
}

func (m *CloseDoorsOfTypeMessage) Tag() Tag { return RpcTag(RpcCloseDoorsOfType) }

func (m *CloseDoorsOfTypeMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Uint8(uint8(m.System))
}

func (m *CloseDoorsOfTypeMessage) deserialize(r *hazel.Reader) {
	m.System = SystemType(r.Uint8())
}

// RepairSystemMessage is sent to the ship status. Amount means something
// different for every system.
type RepairSystemMessage struct {
	System      SystemType
	PlayerNetID uint32
	Amount      uint8
}

func (m *RepairSystemMessage) Tag() Tag { return RpcTag(RpcRepairSystem) }

func (m *RepairSystemMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Uint8(uint8(m.System))
	w.Upacked(m.PlayerNetID)
	w.Uint8(m.Amount)
}

func (m *RepairSystemMessage) deserialize(r *hazel.Reader) {
	m.System = SystemType(r.Uint8())
	m.PlayerNetID = r.Upacked()
	m.Amount = r.Uint8()
}

type SetTasksMessage struct {
	PlayerID uint8
	Tasks    []uint8
}

func (m *SetTasksMessage) Tag() Tag { return RpcTag(RpcSetTasks) }

func (m *SetTasksMessage) Serialize(w *hazel.Writer, _ Direction) {
	w.Uint8(m.PlayerID)
	w.BytesAndSize(m.Tasks)
}

func (m *SetTasksMessage) deserialize(r *hazel.Reader) {
	m.PlayerID = r.Uint8()
	m.Tasks = append([]uint8(nil), r.BytesAndSize()...)
}

// UpdateGameDataMessage carries roster entries, one frame per player tagged
// with the player id.
type UpdateGameDataMessage struct {
	Players []PlayerInfo
}

func (m *UpdateGameDataMessage) Tag() Tag { return RpcTag(RpcUpdateGameData) }

func (m *UpdateGameDataMessage) Serialize(w *hazel.Writer, _ Direction) {
	for i := range m.Players {
		w.Begin(m.Players[i].PlayerID)
		m.Players[i].Serialize(w)
		w.End()
	}
}

func (m *UpdateGameDataMessage) deserialize(r *hazel.Reader) {
	m.Players = nil
	for r.Left() > 0 && r.Err() == nil {
		id, sub := r.Message()
		info := PlayerInfo{PlayerID: id}
		info.Deserialize(sub)
		if sub.Err() != nil {
			return
		}
		m.Players = append(m.Players, info)
	}
}

func (m *UpdateGameDataMessage) String() string {
	return fmt.Sprintf("update game data (%d players)", len(m.Players))
}
