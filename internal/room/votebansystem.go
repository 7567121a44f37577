package room

import (
	"slices"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/protocol"
)

// kick votes needed to kick somebody
const kickVotes = 3

// VoteBanSystem collects kick votes: per target client, up to three voters.
type VoteBanSystem struct {
	Networkable
	Votes map[int32][]int32
}

func newVoteBanSystem(n Networkable) Component {
	return &VoteBanSystem{Networkable: n, Votes: make(map[int32][]int32)}
}

func (c *VoteBanSystem) Classname() string { return "VoteBanSystem" }

func (c *VoteBanSystem) Serialize(w *hazel.Writer, spawn bool) bool {
	if !spawn && c.dirtyBit == 0 {
		return false
	}
	c.dirtyBit = 0

	targets := make([]int32, 0, len(c.Votes))
	for target := range c.Votes {
		targets = append(targets, target)
	}
	slices.Sort(targets)

	w.Uint8(uint8(len(targets)))
	for _, target := range targets {
		w.Int32(target)
		voters := c.Votes[target]
		for i := 0; i < kickVotes; i++ {
			var voter int32
			if i < len(voters) {
				voter = voters[i]
			}
			w.Packed(voter)
		}
	}
	return true
}

func (c *VoteBanSystem) Deserialize(r *hazel.Reader, _ bool) {
	n := int(r.Uint8())
	votes := make(map[int32][]int32, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		target := r.Int32()
		var voters []int32
		for j := 0; j < kickVotes; j++ {
			if voter := r.Packed(); voter != 0 {
				voters = append(voters, voter)
			}
		}
		votes[target] = voters
	}
	if r.Err() == nil {
		c.Votes = votes
	}
}

func (c *VoteBanSystem) HandleRPC(call protocol.Message) {
	if call, ok := call.(*protocol.AddVoteMessage); ok {
		c.applyVote(call.Voting, call.Target)
	}
}

func (c *VoteBanSystem) applyVote(voter, target int32) bool {
	voters := c.Votes[target]
	if slices.Contains(voters, voter) || len(voters) >= kickVotes {
		return false
	}
	c.Votes[target] = append(voters, voter)
	if c.authoritative() {
		c.dirtyBit = 1
	}
	c.room.emit(KickVoteEvent{Voter: voter, Target: target})
	return true
}

// AddVote votes to kick target as this peer.
func (c *VoteBanSystem) AddVote(target int32) {
	voter := c.room.selfID
	if voter == 0 || c.room.Player(target) == nil {
		return
	}
	if c.applyVote(voter, target) {
		c.rpc(&protocol.AddVoteMessage{Voting: voter, Target: target})
	}
}

// Kickable reports whether target collected enough votes.
func (c *VoteBanSystem) Kickable(target int32) bool {
	return len(c.Votes[target]) >= kickVotes
}
