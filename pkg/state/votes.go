package state

import "encoding/json"

// VoteMap is a username -> vote value mapping. Values are opaque JSON and are
// echoed back exactly as submitted.
type VoteMap map[string]json.RawMessage

// VoteLedger is the vote slot table of one room. Votes are keyed by username,
// not by session, so sessions sharing a username share a slot.
type VoteLedger struct {
	votes VoteMap
}

func NewVoteLedger() *VoteLedger {
	return &VoteLedger{votes: make(VoteMap)}
}

// Set upserts the vote for username.
func (l *VoteLedger) Set(username string, value json.RawMessage) {
	v := make(json.RawMessage, len(value))
	copy(v, value)
	l.votes[username] = v
}

func (l *VoteLedger) Remove(username string) {
	delete(l.votes, username)
}

// Reset clears every vote of the current round.
func (l *VoteLedger) Reset() {
	l.votes = make(VoteMap)
}

func (l *VoteLedger) Len() int { return len(l.votes) }

// Snapshot returns a copy safe to hand to the dispatcher. Never nil, so an
// empty ledger encodes as {}.
func (l *VoteLedger) Snapshot() VoteMap {
	out := make(VoteMap, len(l.votes))
	for k, v := range l.votes {
		out[k] = v
	}
	return out
}
