package protocol

import "fmt"

type PacketTag uint8

const (
	PacketUnreliable  PacketTag = 0
	PacketReliable    PacketTag = 1
	PacketHello       PacketTag = 8
	PacketDisconnect  PacketTag = 9
	PacketAcknowledge PacketTag = 10
	PacketPing        PacketTag = 12
)

// root message tags
const (
	RootHostGame     uint8 = 0
	RootJoinGame     uint8 = 1
	RootStartGame    uint8 = 2
	RootRemoveGame   uint8 = 3
	RootRemovePlayer uint8 = 4
	RootGameData     uint8 = 5
	RootGameDataTo   uint8 = 6
	RootJoinedGame   uint8 = 7
	RootEndGame      uint8 = 8
	RootAlterGame    uint8 = 10
	RootKickPlayer   uint8 = 11
	RootWaitForHost  uint8 = 12
	RootRedirect     uint8 = 13
)

// game data message tags
const (
	GameDataData        uint8 = 1
	GameDataRpc         uint8 = 2
	GameDataSpawn       uint8 = 4
	GameDataDespawn     uint8 = 5
	GameDataSceneChange uint8 = 6
	GameDataReady       uint8 = 7
	GameDataClientInfo  uint8 = 205
)

// rpc call ids
const (
	RpcPlayAnimation uint8 = iota
	RpcCompleteTask
	RpcSyncSettings
	RpcSetInfected
	RpcExiled
	RpcCheckName
	RpcSetName
	RpcCheckColor
	RpcSetColor
	RpcSetHat
	RpcSetSkin
	RpcReportDeadBody
	RpcMurderPlayer
	RpcSendChat
	RpcStartMeeting
	RpcSetScanner
	RpcSendChatNote
	RpcSetPet
	RpcSetStartCounter
	RpcEnterVent
	RpcExitVent
	RpcSnapTo
	RpcClose
	RpcVotingComplete
	RpcCastVote
	RpcClearVote
	RpcAddVote
	RpcCloseDoorsOfType
	RpcRepairSystem
	RpcSetTasks
	RpcUpdateGameData
)

const AlterGameChangePrivacy uint8 = 1

// SpawnType is the spawn prefab id.
type SpawnType uint32

const (
	SpawnShipStatus SpawnType = iota
	SpawnMeetingHud
	SpawnLobbyBehaviour
	SpawnGameData
	SpawnPlayer
	SpawnHeadQuarters
	SpawnPlanetMap
	SpawnAprilShipStatus
	SpawnAirship
)

func (t SpawnType) String() string {
	switch t {
	case SpawnShipStatus:
		return "ShipStatus"
	case SpawnMeetingHud:
		return "MeetingHud"
	case SpawnLobbyBehaviour:
		return "LobbyBehaviour"
	case SpawnGameData:
		return "GameData"
	case SpawnPlayer:
		return "Player"
	case SpawnHeadQuarters:
		return "HeadQuarters"
	case SpawnPlanetMap:
		return "PlanetMap"
	case SpawnAprilShipStatus:
		return "AprilShipStatus"
	case SpawnAirship:
		return "Airship"
	default:
		return fmt.Sprintf("SpawnType(%d)", uint32(t))
	}
}

// SpawnFlags
const (
	SpawnFlagNone            uint8 = 0
	SpawnFlagClientCharacter uint8 = 1
)

type SystemType uint8

const (
	SystemHallway SystemType = iota
	SystemStorage
	SystemCafeteria
	SystemReactor
	SystemUpperEngine
	SystemNav
	SystemAdmin
	SystemElectrical
	SystemO2
	SystemShields
	SystemMedBay
	SystemSecurity
	SystemWeapons
	SystemLowerEngine
	SystemComms
	SystemShipTasks
	SystemDoors
	SystemSabotage
	SystemDecontamination
	SystemLaunchpad
	SystemLockerRoom
	SystemLaboratory
	SystemBalcony
	SystemOffice
	SystemGreenhouse
	SystemDropship
	SystemDecontamination2
	SystemOutside
	SystemSpecimens
	SystemBoilerRoom
)

var systemNames = [...]string{
	"Hallway", "Storage", "Cafeteria", "Reactor", "UpperEngine", "Nav",
	"Admin", "Electrical", "O2", "Shields", "MedBay", "Security", "Weapons",
	"LowerEngine", "Comms", "ShipTasks", "Doors", "Sabotage",
	"Decontamination", "Launchpad", "LockerRoom", "Laboratory", "Balcony",
	"Office", "Greenhouse", "Dropship", "Decontamination2", "Outside",
	"Specimens", "BoilerRoom",
}

func (t SystemType) String() string {
	if int(t) < len(systemNames) {
		return systemNames[t]
	}
	return fmt.Sprintf("SystemType(%d)", uint8(t))
}

type DisconnectReason uint8

const (
	DisconnectExitGame            DisconnectReason = 0
	DisconnectGameFull            DisconnectReason = 1
	DisconnectGameStarted         DisconnectReason = 2
	DisconnectGameNotFound        DisconnectReason = 3
	DisconnectIncorrectVersion    DisconnectReason = 5
	DisconnectBanned              DisconnectReason = 6
	DisconnectKicked              DisconnectReason = 7
	DisconnectCustom              DisconnectReason = 8
	DisconnectInvalidName         DisconnectReason = 9
	DisconnectHacking             DisconnectReason = 10
	DisconnectNotAuthorized       DisconnectReason = 11
	DisconnectDestroy             DisconnectReason = 16
	DisconnectError               DisconnectReason = 17
	DisconnectIncorrectGame       DisconnectReason = 18
	DisconnectServerRequest       DisconnectReason = 19
	DisconnectServerFull          DisconnectReason = 20
	DisconnectFocusLostBackground DisconnectReason = 207
	DisconnectIntentionalLeaving  DisconnectReason = 208
	DisconnectFocusLost           DisconnectReason = 209
	DisconnectNewConnection       DisconnectReason = 210
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectExitGame:
		return "ExitGame"
	case DisconnectGameFull:
		return "GameFull"
	case DisconnectGameStarted:
		return "GameStarted"
	case DisconnectGameNotFound:
		return "GameNotFound"
	case DisconnectIncorrectVersion:
		return "IncorrectVersion"
	case DisconnectBanned:
		return "Banned"
	case DisconnectKicked:
		return "Kicked"
	case DisconnectCustom:
		return "Custom"
	case DisconnectInvalidName:
		return "InvalidName"
	case DisconnectHacking:
		return "Hacking"
	case DisconnectNotAuthorized:
		return "NotAuthorized"
	case DisconnectDestroy:
		return "Destroy"
	case DisconnectError:
		return "Error"
	case DisconnectIncorrectGame:
		return "IncorrectGame"
	case DisconnectServerRequest:
		return "ServerRequest"
	case DisconnectServerFull:
		return "ServerFull"
	case DisconnectFocusLostBackground:
		return "FocusLostBackground"
	case DisconnectIntentionalLeaving:
		return "IntentionalLeaving"
	case DisconnectFocusLost:
		return "FocusLost"
	case DisconnectNewConnection:
		return "NewConnection"
	default:
		return fmt.Sprintf("DisconnectReason(%d)", uint8(r))
	}
}

type GameOverReason uint8

const (
	GameOverHumansByVote GameOverReason = iota
	GameOverHumansByTask
	GameOverImpostorByVote
	GameOverImpostorByKill
	GameOverImpostorBySabotage
	GameOverImpostorDisconnect
	GameOverHumansDisconnect
)

const (
	ChatModeFreeChat  uint8 = 1
	ChatModeQuickChat uint8 = 2
)
