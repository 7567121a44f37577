package protocol

import "github.com/blukai/skeldparty/internal/hazel"

const (
	PlayerFlagDisconnected uint8 = 1 << iota
	PlayerFlagImpostor
	PlayerFlagDead
)

type TaskInfo struct {
	ID       uint32
	Complete bool
}

// PlayerInfo is one GameData roster entry. The player id is the tag of the
// frame it travels in, not part of the payload.
type PlayerInfo struct {
	PlayerID uint8
	Name     string
	Color    uint8
	Hat      uint32
	Pet      uint32
	Skin     uint32
	Flags    uint8
	Tasks    []TaskInfo
}

func (p *PlayerInfo) Disconnected() bool { return p.Flags&PlayerFlagDisconnected != 0 }
func (p *PlayerInfo) Impostor() bool     { return p.Flags&PlayerFlagImpostor != 0 }
func (p *PlayerInfo) Dead() bool         { return p.Flags&PlayerFlagDead != 0 }

func (p *PlayerInfo) Serialize(w *hazel.Writer) {
	w.Str(p.Name)
	w.Uint8(p.Color)
	w.Upacked(p.Hat)
	w.Upacked(p.Pet)
	w.Upacked(p.Skin)
	w.Uint8(p.Flags)
	w.Uint8(uint8(len(p.Tasks)))
	for _, task := range p.Tasks {
		w.Upacked(task.ID)
		w.Bool(task.Complete)
	}
}

func (p *PlayerInfo) Deserialize(r *hazel.Reader) {
	p.Name = r.Str()
	p.Color = r.Uint8()
	p.Hat = r.Upacked()
	p.Pet = r.Upacked()
	p.Skin = r.Upacked()
	p.Flags = r.Uint8()
	n := int(r.Uint8())
	p.Tasks = nil
	for i := 0; i < n && r.Err() == nil; i++ {
		p.Tasks = append(p.Tasks, TaskInfo{
			ID:       r.Upacked(),
			Complete: r.Bool(),
		})
	}
}
