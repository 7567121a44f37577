package room

import (
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// Vote targets besides player ids.
const (
	HasNotVoted uint8 = 0xff
	SkippedVote uint8 = 0xfe
)

// time between the result and the hud closing
const meetingCloseDelay = 5 * time.Second

// VoteArea is one player's row on the meeting hud.
type VoteArea struct {
	TargetID  uint8
	VotedFor  uint8
	Dead      bool
	DidReport bool
}

func (a *VoteArea) write(w *hazel.Writer) {
	w.Uint8(a.TargetID)
	w.Uint8(a.VotedFor)
	w.Bool(a.Dead)
	w.Bool(a.DidReport)
}

// voteAreaSize is the encoded size of a VoteArea.
const voteAreaSize = 4

func (a *VoteArea) read(r *hazel.Reader) {
	a.TargetID = r.Uint8()
	a.VotedFor = r.Uint8()
	a.Dead = r.Bool()
	a.DidReport = r.Bool()
}

func (a *VoteArea) voted() bool { return a.VotedFor != HasNotVoted }

// MeetingHud runs a meeting. Votes go to the host, which records them in
// the areas, decides the outcome and closes the hud. Bit i of the dirty
// mask is area i.
type MeetingHud struct {
	Networkable
	Areas []VoteArea

	completed bool
	exiled    uint8
	elapsed   time.Duration
	closeIn   time.Duration
}

func newMeetingHud(n Networkable) Component {
	return &MeetingHud{Networkable: n, exiled: protocol.NoBody}
}

func (c *MeetingHud) Classname() string { return "MeetingHud" }

func (c *MeetingHud) fill(room *Room, reporter uint8) {
	c.Areas = c.Areas[:0]
	if room.gameData == nil {
		return
	}
	for _, info := range room.gameData.Players() {
		if info.Flags&protocol.PlayerFlagDisconnected != 0 {
			continue
		}
		c.Areas = append(c.Areas, VoteArea{
			TargetID:  info.PlayerID,
			VotedFor:  HasNotVoted,
			Dead:      info.Flags&protocol.PlayerFlagDead != 0,
			DidReport: info.PlayerID == reporter,
		})
	}
}

func (c *MeetingHud) area(playerID uint8) (int, *VoteArea) {
	for i := range c.Areas {
		if c.Areas[i].TargetID == playerID {
			return i, &c.Areas[i]
		}
	}
	return -1, nil
}

func (c *MeetingHud) Serialize(w *hazel.Writer, spawn bool) bool {
	defer func() { c.dirtyBit = 0 }()

	if spawn {
		w.Upacked(uint32(len(c.Areas)))
		for i := range c.Areas {
			c.Areas[i].write(w)
		}
		return true
	}

	if c.dirtyBit == 0 {
		return false
	}
	w.Upacked(c.dirtyBit)
	for i := range c.Areas {
		if c.dirtyBit&(1<<i) != 0 {
			c.Areas[i].write(w)
		}
	}
	return true
}

func (c *MeetingHud) Deserialize(r *hazel.Reader, spawn bool) {
	if spawn {
		n := r.Count(voteAreaSize)
		areas := make([]VoteArea, n)
		for i := 0; i < n && r.Err() == nil; i++ {
			areas[i].read(r)
		}
		if r.Err() == nil {
			c.Areas = areas
		}
		return
	}

	mask := r.Upacked()
	for i := range c.Areas {
		if r.Err() != nil {
			return
		}
		if mask&(1<<i) != 0 {
			c.Areas[i].read(r)
		}
	}
}

func (c *MeetingHud) HandleRPC(call protocol.Message) {
	switch call := call.(type) {
	case *protocol.CastVoteMessage:
		if c.room.IsHost() {
			c.castVote(call.Voter, call.Suspect)
		}
	case *protocol.VotingCompleteMessage:
		c.applyComplete(call.States, call.Exiled, call.Tie)
	case *protocol.ClearVoteMessage:
		if p := c.room.Player(c.room.selfID); p != nil {
			if _, a := c.area(p.PlayerID()); a != nil {
				a.VotedFor = HasNotVoted
			}
		}
	case *protocol.CloseMeetingMessage:
	}
}

// CastVote votes as the local player. suspect is a player id or
// SkippedVote.
func (c *MeetingHud) CastVote(suspect uint8) {
	p := c.room.Player(c.room.selfID)
	if p == nil || !p.Spawned() {
		return
	}
	if c.room.IsHost() {
		c.castVote(p.PlayerID(), suspect)
		return
	}
	c.rpc(&protocol.CastVoteMessage{Voter: p.PlayerID(), Suspect: suspect})
}

func (c *MeetingHud) castVote(voter, suspect uint8) {
	i, a := c.area(voter)
	if a == nil || a.Dead || a.voted() || c.completed {
		return
	}
	if suspect != SkippedVote {
		if _, target := c.area(suspect); target == nil || target.Dead {
			return
		}
	}

	a.VotedFor = suspect
	c.dirtyBit |= 1 << i
	c.room.emit(VoteEvent{Voter: voter, Suspect: suspect})

	for j := range c.Areas {
		if !c.Areas[j].Dead && !c.Areas[j].voted() {
			return
		}
	}
	c.complete()
}

// ClearVote takes back a player's vote and tells its owner. Host only.
func (c *MeetingHud) ClearVote(playerID uint8) {
	if !c.room.IsHost() || c.completed {
		return
	}
	i, a := c.area(playerID)
	if a == nil || !a.voted() {
		return
	}
	a.VotedFor = HasNotVoted
	c.dirtyBit |= 1 << i

	if p := c.room.PlayerByID(playerID); p != nil {
		c.room.EnqueueTo(p.ClientID(), &protocol.RpcMessage{NetID: c.netID, Call: &protocol.ClearVoteMessage{}})
	}
}

// complete counts the votes. The player with the most votes is exiled;
// a tie or a majority of skips exiles nobody.
func (c *MeetingHud) complete() {
	if c.completed {
		return
	}

	counts := make(map[uint8]int)
	states := make([]byte, len(c.Areas))
	for i := range c.Areas {
		states[i] = c.Areas[i].VotedFor
		if c.Areas[i].voted() {
			counts[c.Areas[i].VotedFor]++
		}
	}

	exiled, best, tie := protocol.NoBody, 0, false
	for target, n := range counts {
		switch {
		case n > best:
			exiled, best, tie = target, n, false
		case n == best:
			tie = true
		}
	}
	if tie || exiled == SkippedVote {
		exiled = protocol.NoBody
	}

	c.applyComplete(states, exiled, tie)
	c.rpc(&protocol.VotingCompleteMessage{States: states, Exiled: exiled, Tie: tie})
}

func (c *MeetingHud) applyComplete(states []byte, exiled uint8, tie bool) {
	for i := range c.Areas {
		if i < len(states) {
			c.Areas[i].VotedFor = states[i]
		}
	}
	c.completed = true
	c.exiled = exiled
	c.closeIn = meetingCloseDelay
	c.room.emit(VotingCompleteEvent{Exiled: exiled, Tie: tie})
}

// FixedUpdate ends voting when time runs out, then closes the hud. Host
// only.
func (c *MeetingHud) FixedUpdate(dt time.Duration) {
	if !c.room.IsHost() {
		return
	}

	if !c.completed {
		c.elapsed += dt
		limit := time.Duration(c.room.Settings.DiscussionTime+c.room.Settings.VotingTime) * time.Second
		if c.room.Settings.VotingTime > 0 && c.elapsed >= limit {
			c.complete()
		}
		return
	}

	c.closeIn -= dt
	if c.closeIn > 0 {
		return
	}
	c.rpc(&protocol.CloseMeetingMessage{})
	if p := c.room.PlayerByID(c.exiled); p != nil && p.Control() != nil {
		p.Control().Exile()
	}
	c.room.DespawnComponent(c)
}
