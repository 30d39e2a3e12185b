package state

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRoom_MembersAndUsernamesStayInLockstep(t *testing.T) {
	room := NewRoom("R1")
	a, b := uuid.New(), uuid.New()

	room.AddMember(a, "alice", "voter")
	room.AddMember(b, "bob", "facilitator")
	room.AddMember(a, "alicia", "voter") // rejoin overwrites

	snap := room.Snapshot()
	require.Len(t, snap.Users, 2)
	require.Len(t, snap.Usernames, 2)
	for id, m := range snap.Users {
		require.Equal(t, m.Username, snap.Usernames[id])
	}
	require.Equal(t, Member{Username: "alicia", Role: "voter"}, snap.Users[a.String()])

	username, ok := room.RemoveMember(a)
	require.True(t, ok)
	require.Equal(t, "alicia", username)
	require.False(t, room.HasMember(a))

	_, ok = room.RemoveMember(a)
	require.False(t, ok)
	require.Equal(t, 1, room.MemberCount())
}

func TestRoom_RemoveMemberDropsUsernameVote(t *testing.T) {
	room := NewRoom("R1")
	a := uuid.New()
	room.AddMember(a, "alice", "voter")
	room.Votes().Set("alice", json.RawMessage(`"5"`))
	room.Votes().Set("bob", json.RawMessage(`"3"`))

	room.RemoveMember(a)

	require.NotContains(t, room.Votes().Snapshot(), "alice")
	require.Equal(t, VoteMap{"bob": json.RawMessage(`"3"`)}, room.Votes().Snapshot())
	require.False(t, room.IsEmpty())
}

func TestRoom_SnapshotEncodesEmptyMaps(t *testing.T) {
	room := NewRoom("R1")
	room.SetMetadata("Sprint 12", "estimate the backlog")

	raw, err := json.Marshal(room.Snapshot())
	require.NoError(t, err)
	require.JSONEq(t,
		`{"users":{},"votes":{},"usernames":{},"title":"Sprint 12","description":"estimate the backlog"}`,
		string(raw))
}

func TestVoteLedger_SetOverwritesAndResets(t *testing.T) {
	l := NewVoteLedger()
	l.Set("alice", json.RawMessage(`"5"`))
	l.Set("alice", json.RawMessage(`{"points":8,"comment":"risky"}`))

	v, ok := l.Snapshot()["alice"]
	require.True(t, ok)
	require.JSONEq(t, `{"points":8,"comment":"risky"}`, string(v))
	require.Equal(t, 1, l.Len())

	snap := l.Snapshot()
	l.Reset()
	require.Equal(t, 0, l.Len())
	require.Len(t, snap, 1, "snapshot must not alias the ledger")

	raw, err := json.Marshal(l.Snapshot())
	require.NoError(t, err)
	require.Equal(t, `{}`, string(raw))
}

func TestVoteLedger_SetCopiesValue(t *testing.T) {
	l := NewVoteLedger()
	buf := []byte(`"13"`)
	l.Set("alice", buf)
	buf[1] = '9'

	v, _ := l.Snapshot()["alice"]
	require.Equal(t, `"13"`, string(v))
}
