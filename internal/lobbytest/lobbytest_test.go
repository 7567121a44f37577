package lobbytest_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/blukai/skeldparty/internal/hazel"
	"github.com/blukai/skeldparty/internal/lobbyclient"
	"github.com/blukai/skeldparty/internal/lobbyserver"
	"github.com/blukai/skeldparty/internal/protocol"
	"github.com/blukai/skeldparty/internal/room"
	"github.com/matryer/is"
	"github.com/phuslu/log"
)

func testLogger() *log.Logger {
	logger := log.DefaultLogger
	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Level = log.WarnLevel
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}
	return &logger
}

func startServer(t *testing.T, ctx context.Context) *lobbyserver.LobbyServer {
	t.Helper()
	is := is.New(t)

	ls, err := lobbyserver.NewLobbyServer(lobbyserver.Config{
		Network:      "udp4",
		Address:      "127.0.0.1:0",
		TickInterval: 5 * time.Millisecond,
		Logger:       testLogger(),
	})
	is.NoErr(err)

	done := make(chan error, 1)
	go func() { done <- ls.Run(ctx) }()
	t.Cleanup(func() { <-done })
	return ls
}

func startClient(t *testing.T, ctx context.Context, ls *lobbyserver.LobbyServer, username string) *lobbyclient.LobbyClient {
	t.Helper()
	is := is.New(t)

	lc, err := lobbyclient.NewLobbyClient(lobbyclient.Config{
		Network:      "udp4",
		Address:      ls.Addr().String(),
		Username:     username,
		TickInterval: 5 * time.Millisecond,
		Logger:       testLogger(),
	})
	is.NoErr(err)

	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()
	t.Cleanup(func() { <-done })

	is.NoErr(lc.Connect(ctx))
	return lc
}

// eventually polls cond on the client goroutine until it holds.
func eventually(t *testing.T, ctx context.Context, lc *lobbyclient.LobbyClient, cond func(r *room.Room) bool) {
	t.Helper()

	for {
		var ok bool
		if err := lc.Do(ctx, func(r *room.Room) { ok = r != nil && cond(r) }); err != nil {
			t.Fatalf("condition never held: %v", err)
		}
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func netIDs(r *room.Room) []uint32 {
	var out []uint32
	for _, c := range r.NetObjects() {
		out = append(out, c.NetID())
	}
	return out
}

// setup opens a game hosted by a and joins b to it.
func setup(t *testing.T, ctx context.Context) (ls *lobbyserver.LobbyServer, a, b *lobbyclient.LobbyClient, idA, idB int32) {
	t.Helper()
	is := is.New(t)

	ls = startServer(t, ctx)
	a = startClient(t, ctx, ls, "a")
	b = startClient(t, ctx, ls, "b")

	code, err := a.HostGame(ctx, protocol.DefaultGameOptions())
	is.NoErr(err)
	idA, err = a.JoinGame(ctx, code)
	is.NoErr(err)
	idB, err = b.JoinGame(ctx, code)
	is.NoErr(err)

	// a learns about b through the join broadcast
	eventually(t, ctx, a, func(r *room.Room) bool { return r.Player(idB) != nil })
	return ls, a, b, idA, idB
}

func TestHostSpawnsGuestPlayer(t *testing.T) {
	is := is.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, a, b, idA, idB := setup(t, ctx)
	is.Equal(idA, int32(1))
	is.Equal(idB, int32(2))

	var (
		want   []uint32
		spawns int
	)
	is.NoErr(a.Do(ctx, func(r *room.Room) {
		if obj := r.SpawnPrefab(protocol.SpawnPlayer, idB, protocol.SpawnFlagClientCharacter); obj != nil {
			spawns = len(obj.Components)
		}
		want = netIDs(r)
	}))
	is.Equal(spawns, 3)
	is.Equal(want, []uint32{1, 2, 3})

	eventually(t, ctx, b, func(r *room.Room) bool {
		p := r.Player(idB)
		return p != nil && p.Spawned()
	})
	var (
		got    []uint32
		owners []int32
	)
	is.NoErr(b.Do(ctx, func(r *room.Room) {
		got = netIDs(r)
		for _, c := range r.Player(idB).Components() {
			owners = append(owners, c.OwnerID())
		}
	}))
	is.Equal(got, want)
	is.Equal(owners, []int32{idB, idB, idB})
}

func TestEnterGame(t *testing.T) {
	is := is.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ls, a, b, idA, idB := setup(t, ctx)

	is.NoErr(a.EnterGame(ctx))
	// the host answers b's scene change with everything spawned so far and
	// b's own player
	is.NoErr(b.EnterGame(ctx))

	var want []uint32
	eventually(t, ctx, a, func(r *room.Room) bool {
		want = netIDs(r)
		p := r.Player(idB)
		return p != nil && p.Spawned()
	})
	eventually(t, ctx, b, func(r *room.Room) bool {
		return slices.Equal(netIDs(r), want)
	})

	// the server follows along
	snap, err := ls.Snapshot(ctx)
	is.NoErr(err)
	is.Equal(len(snap), 1)
	is.Equal(snap[0].NetObjects, want)

	// names go through the host
	is.NoErr(b.Do(ctx, func(r *room.Room) {
		r.Player(idB).Control().CheckName("b")
	}))
	is.NoErr(a.Do(ctx, func(r *room.Room) {
		r.Player(idA).Control().CheckName("b")
	}))
	eventually(t, ctx, b, func(r *room.Room) bool {
		infoA, infoB := r.Player(idA).Info(), r.Player(idB).Info()
		return infoA != nil && infoB != nil && infoA.Name != "" && infoB.Name != ""
	})
	var nameA, nameB string
	is.NoErr(b.Do(ctx, func(r *room.Room) {
		nameA, nameB = r.Player(idA).Info().Name, r.Player(idB).Info().Name
	}))
	is.True(nameA != nameB)

	// movement flows from the owner to everyone else; the extremes quantize
	// exactly
	is.NoErr(b.Do(ctx, func(r *room.Room) {
		r.Player(idB).Transform().Move(hazel.Vector2{X: 50, Y: -50}, hazel.Vector2{X: -50, Y: 50})
	}))
	eventually(t, ctx, a, func(r *room.Room) bool {
		return r.Player(idB).Transform().Position == hazel.Vector2{X: 50, Y: -50}
	})
}

func TestJoinUnknownGame(t *testing.T) {
	is := is.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ls := startServer(t, ctx)
	lc := startClient(t, ctx, ls, "lost")

	_, err := lc.JoinGame(ctx, 12345)
	is.True(err != nil)
	var joined bool
	is.NoErr(lc.Do(ctx, func(r *room.Room) { joined = r != nil }))
	is.True(!joined)
}
