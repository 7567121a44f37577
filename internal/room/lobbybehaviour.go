package room

import (
	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// LobbyBehaviour marks the pre-game lobby. It carries no state.
type LobbyBehaviour struct {
	Networkable
}

func newLobbyBehaviour(n Networkable) Component {
	return &LobbyBehaviour{Networkable: n}
}

func (c *LobbyBehaviour) Classname() string { return "LobbyBehaviour" }

func (c *LobbyBehaviour) Serialize(*hazel.Writer, bool) bool {
	c.dirtyBit = 0
	return false
}

func (c *LobbyBehaviour) Deserialize(*hazel.Reader, bool) {}
func (c *LobbyBehaviour) HandleRPC(protocol.Message)      {}
