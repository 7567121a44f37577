package systems_test

import (
	"testing"
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/blukai/skeldparty/internal/room/systems"
	"github.com/matryer/is"
)

type testShip struct {
	dirty  uint32
	list   []systems.System
	events []any
}

func newTestShip(table systems.Table) *testShip {
	ship := &testShip{}
	ship.list = table.Build(ship)
	return ship
}

func (s *testShip) DirtyBit() uint32       { return s.dirty }
func (s *testShip) SetDirtyBit(bit uint32) { s.dirty = bit }
func (s *testShip) Emit(event any)         { s.events = append(s.events, event) }

func (s *testShip) System(t protocol.SystemType) systems.System {
	for _, sys := range s.list {
		if sys.Type() == t {
			return sys
		}
	}
	return nil
}

func snapshot(s systems.System) []byte {
	w := hazel.NewWriter()
	s.Write(w, true)
	return w.Bytes()
}

func syncShips(t *testing.T, from, to *testShip, spawn bool) bool {
	t.Helper()
	is := is.New(t)

	w := hazel.NewWriter()
	if !systems.WriteAll(w, from, from.list, spawn) {
		return false
	}
	r := hazel.NewReader(w.Bytes())
	systems.ReadAll(r, to.list, spawn)
	is.NoErr(r.Err())
	is.Equal(r.Left(), 0)
	return true
}

func TestMarkDirtyLivesOnShip(t *testing.T) {
	is := is.New(t)
	ship := newTestShip(systems.SkeldTable)

	systems.MarkDirty(ship, protocol.SystemDoors)
	is.Equal(ship.dirty, uint32(1<<protocol.SystemDoors))
	is.True(systems.IsDirty(ship, protocol.SystemDoors))
	is.True(!systems.IsDirty(ship, protocol.SystemReactor))
}

func TestIncrementalUpdateCarriesOnlyDirtySystems(t *testing.T) {
	is := is.New(t)

	host := newTestShip(systems.SkeldTable)
	replica := newTestShip(systems.SkeldTable)
	is.True(syncShips(t, host, replica, true))
	is.Equal(host.dirty, uint32(0))

	before := make(map[protocol.SystemType][]byte)
	for _, s := range replica.list {
		before[s.Type()] = snapshot(s)
	}

	host.System(protocol.SystemReactor).HandleRepair(1, systems.RepairSabotage)
	host.System(protocol.SystemDoors).(*systems.AutoDoors).CloseDoorsOfType(protocol.SystemCafeteria)
	host.System(protocol.SystemMedBay).HandleRepair(2, systems.MedScanAdd)
	// a bit for a system this ship does not have is dropped
	systems.MarkDirty(host, protocol.SystemHallway)

	w := hazel.NewWriter()
	is.True(systems.WriteAll(w, host, host.list, false))
	is.Equal(host.dirty, uint32(0))

	r := hazel.NewReader(w.Bytes())
	mask := r.Upacked()
	is.Equal(mask, uint32(1<<protocol.SystemReactor|1<<protocol.SystemMedBay|1<<protocol.SystemDoors))

	r = hazel.NewReader(w.Bytes())
	systems.ReadAll(r, replica.list, false)
	is.NoErr(r.Err())
	is.Equal(r.Left(), 0)

	for _, s := range replica.list {
		switch s.Type() {
		case protocol.SystemReactor, protocol.SystemDoors, protocol.SystemMedBay:
			is.Equal(snapshot(s), snapshot(host.System(s.Type())))
		default:
			is.Equal(snapshot(s), before[s.Type()])
		}
	}

	doors := replica.System(protocol.SystemDoors).(*systems.AutoDoors)
	for i, d := range doors.Doors {
		is.Equal(d.Open, i != 0 && i != 3 && i != 8)
	}

	// nothing changed since the last write
	is.True(!syncShips(t, host, replica, false))
}

func TestReactor(t *testing.T) {
	is := is.New(t)
	ship := newTestShip(systems.SkeldTable)
	reactor := ship.System(protocol.SystemReactor).(*systems.Reactor)

	reactor.HandleRepair(0, systems.RepairSabotage)
	is.True(reactor.Sabotaged())
	is.Equal(ship.events, []any{systems.SabotageEvent{System: protocol.SystemReactor}})

	reactor.HandleRepair(1, systems.ReactorAddConsole|0)
	reactor.HandleRepair(1, systems.ReactorAddConsole|0)
	is.True(reactor.Sabotaged())
	is.Equal(len(reactor.Consoles), 1)

	reactor.HandleRepair(2, systems.ReactorAddConsole|1)
	is.True(!reactor.Sabotaged())
	is.Equal(ship.events[len(ship.events)-1], systems.RepairEvent{System: protocol.SystemReactor, PlayerID: 2})

	reactor.HandleRepair(0, systems.RepairSabotage)
	for i := 0; i < 40; i++ {
		reactor.Tick(time.Second)
	}
	is.Equal(ship.events[len(ship.events)-1], systems.CriticalEvent{System: protocol.SystemReactor})
}

func TestSabotageCooldown(t *testing.T) {
	is := is.New(t)
	ship := newTestShip(systems.SkeldTable)
	sabotage := ship.System(protocol.SystemSabotage).(*systems.Sabotage)
	comms := ship.System(protocol.SystemComms).(*systems.HudOverride)
	lights := ship.System(protocol.SystemElectrical).(*systems.Switch)

	sabotage.HandleRepair(0, uint8(protocol.SystemComms))
	is.True(comms.Active)
	is.True(sabotage.Cooldown > 0)

	// still cooling down
	sabotage.HandleRepair(0, uint8(protocol.SystemElectrical))
	is.True(!lights.Sabotaged())

	sabotage.Tick(31 * time.Second)
	is.Equal(sabotage.Cooldown, float32(0))
	sabotage.HandleRepair(0, uint8(protocol.SystemElectrical))
	is.True(lights.Sabotaged())

	// flipping the mismatched switches back fixes the lights
	diff := lights.Expected ^ lights.Actual
	for i := uint8(0); i < 5; i++ {
		if diff&(1<<i) != 0 {
			lights.HandleRepair(3, i)
		}
	}
	is.True(!lights.Sabotaged())
}

func TestDoorsReopen(t *testing.T) {
	is := is.New(t)
	ship := newTestShip(systems.SkeldTable)
	doors := ship.System(protocol.SystemDoors).(*systems.AutoDoors)

	doors.CloseDoorsOfType(protocol.SystemElectrical)
	is.True(!doors.Doors[9].Open)

	doors.Tick(5 * time.Second)
	is.True(!doors.Doors[9].Open)
	doors.Tick(5 * time.Second)
	is.True(doors.Doors[9].Open)
}

// doorMask writes the ship's pending update and returns the doors' own mask
// from it.
func doorMask(t *testing.T, ship *testShip) uint32 {
	t.Helper()
	is := is.New(t)

	w := hazel.NewWriter()
	is.True(systems.WriteAll(w, ship, ship.list, false))
	r := hazel.NewReader(w.Bytes())
	is.Equal(r.Upacked(), uint32(1<<protocol.SystemDoors))
	mask := r.Upacked()
	is.NoErr(r.Err())
	return mask
}

func TestSpawnWriteConsumesDoorChanges(t *testing.T) {
	is := is.New(t)

	host := newTestShip(systems.SkeldTable)
	replica := newTestShip(systems.SkeldTable)
	doors := host.System(protocol.SystemDoors).(*systems.AutoDoors)

	doors.CloseDoorsOfType(protocol.SystemCafeteria)
	is.True(syncShips(t, host, replica, true))

	// the full write already carried the cafeteria doors
	doors.CloseDoorsOfType(protocol.SystemElectrical)
	is.Equal(doorMask(t, host), uint32(1<<9))
}

func TestSnapshotKeepsDoorChanges(t *testing.T) {
	is := is.New(t)

	ship := newTestShip(systems.SkeldTable)
	ship.System(protocol.SystemDoors).(*systems.AutoDoors).CloseDoorsOfType(protocol.SystemCafeteria)

	w := hazel.NewWriter()
	systems.Snapshot(w, ship.list)
	is.True(systems.IsDirty(ship, protocol.SystemDoors))
	is.Equal(doorMask(t, ship), uint32(1<<0|1<<3|1<<8))
}

func TestMiraTable(t *testing.T) {
	is := is.New(t)

	host := newTestShip(systems.MiraTable)
	replica := newTestShip(systems.MiraTable)

	comms := host.System(protocol.SystemComms).(*systems.HqHud)
	comms.HandleRepair(0, systems.RepairSabotage)
	comms.HandleRepair(1, systems.HqHudComplete|0)
	host.System(protocol.SystemDecontamination).HandleRepair(1, 1)

	is.True(syncShips(t, host, replica, true))
	for _, s := range replica.list {
		is.Equal(snapshot(s), snapshot(host.System(s.Type())))
	}
	is.True(replica.System(protocol.SystemComms).(*systems.HqHud).Sabotaged())
}

func TestSystemNamespace(t *testing.T) {
	is := is.New(t)

	reg := protocol.NewRegistry()
	systems.Register(reg)

	ship := newTestShip(systems.SkeldTable)
	ship.System(protocol.SystemMedBay).HandleRepair(4, systems.MedScanAdd)

	w := hazel.NewWriter()
	ship.System(protocol.SystemMedBay).Serialize(w, protocol.Clientbound)

	msg, err := reg.Decode(protocol.SystemTag(protocol.SystemMedBay), hazel.NewReader(w.Bytes()), protocol.Clientbound)
	is.NoErr(err)
	is.Equal(msg.(*systems.MedScan).Queue, []uint8{4})
}
