package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/blackjack-server/internal/protocol"
)

// seatPlayers logs in and seats the given nicknames in room 0, in order.
func seatPlayers(l *Lobby, nicks ...string) {
	for i, nick := range nicks {
		id := uint32(i + 1)
		login(l, id, nick)
		l.Handle(id, cmdMsg(protocol.CmdJoinRoom, "0"))
	}
}

func TestRoom_ReadyTransitionsToBetting(t *testing.T) {
	l, rec := newTestLobby(testOptions())
	seatPlayers(l, "alice", "bob")
	room := l.rooms[0]

	l.Handle(1, cmdMsg(protocol.CmdReady))
	assert.True(t, rec.received(1, protocol.CmdAckReady))
	assert.Equal(t, WaitingForPlayers, room.State(), "one unready seat blocks the round")

	// Readiness can be withdrawn.
	l.Handle(1, cmdMsg(protocol.CmdNotReady))
	assert.True(t, rec.received(1, protocol.CmdAckNotReady))

	l.Handle(1, cmdMsg(protocol.CmdReady))
	l.Handle(2, cmdMsg(protocol.CmdReady))
	assert.Equal(t, Betting, room.State())
	assert.True(t, rec.received(1, protocol.CmdReqBet))
	assert.True(t, rec.received(2, protocol.CmdReqBet))
}

func TestRoom_BetValidation(t *testing.T) {
	l, rec := newTestLobby(testOptions())
	seatPlayers(l, "alice")
	room := l.rooms[0]
	l.Handle(1, cmdMsg(protocol.CmdReady))
	require.Equal(t, Betting, room.State())

	p, _ := l.Player(1)

	for _, amount := range []string{"0", "-5", "1001", "junk", ""} {
		rec.reset()
		l.Handle(1, cmdMsg(protocol.CmdBet, amount))
		assert.True(t, rec.received(1, protocol.CmdNackBet), "amount %q", amount)
		assert.False(t, p.PlacedBet)
		assert.Equal(t, 1000, p.Credits)
	}

	rec.reset()
	l.Handle(1, cmdMsg(protocol.CmdBet))
	assert.True(t, rec.received(1, protocol.CmdNackBet))

	// Domain refusals carry no fault penalty.
	assert.Zero(t, p.Faults)
}

func TestRoom_BetEscrowAndDeal(t *testing.T) {
	l, rec := newTestLobby(testOptions())
	seatPlayers(l, "alice", "bob")
	room := l.rooms[0]
	room.draw = scriptedDeck("KH", "9H", "KS", "9S", "KD", "QD")

	l.Handle(1, cmdMsg(protocol.CmdReady))
	l.Handle(2, cmdMsg(protocol.CmdReady))
	require.Equal(t, Betting, room.State())

	l.Handle(1, cmdMsg(protocol.CmdBet, "100"))
	alice, _ := l.Player(1)
	assert.True(t, alice.PlacedBet)
	assert.Equal(t, 900, alice.Credits, "bet is escrowed immediately")
	args, _ := rec.lastArgs(1, protocol.CmdAckBet)
	assert.Equal(t, []string{"100"}, args)
	assert.Equal(t, Betting, room.State(), "waiting for the second bet")

	// Double betting is refused.
	rec.reset()
	l.Handle(1, cmdMsg(protocol.CmdBet, "50"))
	assert.True(t, rec.received(1, protocol.CmdNackBet))
	assert.Equal(t, 900, alice.Credits)

	l.Handle(2, cmdMsg(protocol.CmdBet, "200"))
	require.Equal(t, Playing, room.State())

	bob, _ := l.Player(2)
	assert.Equal(t, []string{"KH", "9H"}, room.dealerCards)
	assert.Equal(t, []string{"KS", "9S"}, alice.Hand)
	assert.Equal(t, []string{"KD", "QD"}, bob.Hand)
	require.Len(t, room.turnQueue, 2)
	assert.Same(t, alice, room.turnQueue[0], "turn order follows seating order")
	assert.True(t, rec.received(1, protocol.CmdGameState))
}

// An end-to-end round: alice hits into a bust, bob stands, the house plays
// out, and both settlements match balance_before - bet + payout.
func TestRoom_FullRound(t *testing.T) {
	l, rec := newTestLobby(testOptions())
	seatPlayers(l, "alice", "bob")
	room := l.rooms[0]
	// Dealer 19; alice 19 then busts on a 7; bob 20.
	room.draw = scriptedDeck("KH", "9H", "KS", "9S", "KD", "QD", "7C")

	l.Handle(1, cmdMsg(protocol.CmdReady))
	l.Handle(2, cmdMsg(protocol.CmdReady))
	l.Handle(1, cmdMsg(protocol.CmdBet, "100"))
	l.Handle(2, cmdMsg(protocol.CmdBet, "100"))
	require.Equal(t, Playing, room.State())

	l.Handle(1, cmdMsg(protocol.CmdHit))
	assert.True(t, rec.received(1, protocol.CmdBust))
	alice, _ := l.Player(1)
	assert.Equal(t, []string{"KS", "9S", "7C"}, alice.Hand)

	rec.reset()
	l.Handle(2, cmdMsg(protocol.CmdStand))
	assert.True(t, rec.received(2, protocol.CmdAckStand))
	require.Equal(t, RoundEnd, room.State())

	// Dealer stood on 19; alice busted (-100), bob won even money (+200).
	args, ok := rec.lastArgs(1, protocol.CmdRoundEnd)
	require.True(t, ok)
	assert.Equal(t, []string{"900;-100"}, args)

	args, ok = rec.lastArgs(2, protocol.CmdRoundEnd)
	require.True(t, ok)
	assert.Equal(t, []string{"1100;200"}, args)

	// The next tick cycles the room back to waiting with clean seats.
	room.Advance()
	assert.Equal(t, WaitingForPlayers, room.State())
	assert.Empty(t, alice.Hand)
	assert.False(t, alice.Ready)
	assert.Zero(t, alice.BetAmount)
	assert.Equal(t, 900, alice.Credits, "credits survive the reset")
}

func TestRoom_Settlement(t *testing.T) {
	run := func(t *testing.T, deck []string, stand bool, wantCredits, wantWinnings string) {
		l, rec := newTestLobby(testOptions())
		seatPlayers(l, "alice")
		room := l.rooms[0]
		room.draw = scriptedDeck(deck...)

		l.Handle(1, cmdMsg(protocol.CmdReady))
		l.Handle(1, cmdMsg(protocol.CmdBet, "100"))
		require.Equal(t, Playing, room.State())
		if stand {
			l.Handle(1, cmdMsg(protocol.CmdStand))
		}
		require.Equal(t, RoundEnd, room.State())

		args, ok := rec.lastArgs(1, protocol.CmdRoundEnd)
		require.True(t, ok)
		assert.Equal(t, []string{wantCredits + ";" + wantWinnings}, args)
	}

	t.Run("push returns the escrowed bet", func(t *testing.T) {
		// Dealer 19, player 19.
		run(t, []string{"KH", "9H", "KS", "9S"}, true, "1000", "100")
	})

	t.Run("natural pays 1.5x", func(t *testing.T) {
		// Dealer 19, player A+K natural.
		run(t, []string{"KH", "9H", "AS", "KS"}, true, "1050", "150")
	})

	t.Run("win pays even money", func(t *testing.T) {
		// Dealer 17, player 20.
		run(t, []string{"KH", "7H", "KS", "QS"}, true, "1100", "200")
	})

	t.Run("dealer bust pays even money", func(t *testing.T) {
		// Dealer 16 then busts on a king; player 18.
		run(t, []string{"KH", "6H", "KS", "8S", "KC"}, true, "1100", "200")
	})

	t.Run("dealer win takes the bet", func(t *testing.T) {
		// Dealer 20, player 18.
		run(t, []string{"KH", "QH", "KS", "8S"}, true, "900", "-100")
	})

	t.Run("natural truncates odd payouts", func(t *testing.T) {
		l, rec := newTestLobby(testOptions())
		seatPlayers(l, "alice")
		room := l.rooms[0]
		room.draw = scriptedDeck("KH", "9H", "AS", "KS")

		l.Handle(1, cmdMsg(protocol.CmdReady))
		l.Handle(1, cmdMsg(protocol.CmdBet, "101"))
		l.Handle(1, cmdMsg(protocol.CmdStand))

		args, ok := rec.lastArgs(1, protocol.CmdRoundEnd)
		require.True(t, ok)
		// 1.5 * 101 = 151.5, truncated to 151; 899 + 151 = 1050.
		assert.Equal(t, []string{"1050;151"}, args)
	})
}

func TestRoom_HitToTwentyOneAutoStands(t *testing.T) {
	l, rec := newTestLobby(testOptions())
	seatPlayers(l, "alice")
	room := l.rooms[0]
	// Dealer 20; alice 15, hits a 6 for exactly 21.
	room.draw = scriptedDeck("KH", "QH", "KS", "5S", "6C")

	l.Handle(1, cmdMsg(protocol.CmdReady))
	l.Handle(1, cmdMsg(protocol.CmdBet, "100"))
	l.Handle(1, cmdMsg(protocol.CmdHit))

	assert.True(t, rec.received(1, protocol.CmdHit21))
	require.Equal(t, RoundEnd, room.State())

	// 21 beats the dealer's 20 but a three-card 21 is no natural.
	args, ok := rec.lastArgs(1, protocol.CmdRoundEnd)
	require.True(t, ok)
	assert.Equal(t, []string{"1100;200"}, args)
}

func TestRoom_OutOfTurnActions(t *testing.T) {
	l, rec := newTestLobby(testOptions())
	seatPlayers(l, "alice", "bob")
	room := l.rooms[0]
	room.draw = scriptedDeck("KH", "9H", "KS", "9S", "KD", "QD", "2C")

	l.Handle(1, cmdMsg(protocol.CmdReady))
	l.Handle(2, cmdMsg(protocol.CmdReady))
	l.Handle(1, cmdMsg(protocol.CmdBet, "100"))
	l.Handle(2, cmdMsg(protocol.CmdBet, "100"))
	require.Equal(t, Playing, room.State())
	require.Same(t, room.turnQueue[0], mustPlayer(t, l, 1))

	bob, _ := l.Player(2)
	rec.reset()

	l.Handle(2, cmdMsg(protocol.CmdHit))
	assert.True(t, rec.received(2, protocol.CmdNackHit))
	assert.Len(t, bob.Hand, 2, "no card dealt out of turn")

	l.Handle(2, cmdMsg(protocol.CmdStand))
	assert.True(t, rec.received(2, protocol.CmdNackStand))
	require.Len(t, room.turnQueue, 2)

	// Being refused a turn action is not protocol abuse.
	assert.Zero(t, bob.Faults)
}

func TestRoom_TurnTimeoutForcesStand(t *testing.T) {
	l, _ := newTestLobby(testOptions())
	seatPlayers(l, "alice", "bob")
	room := l.rooms[0]
	room.draw = scriptedDeck("KH", "9H", "KS", "9S", "KD", "QD")

	l.Handle(1, cmdMsg(protocol.CmdReady))
	l.Handle(2, cmdMsg(protocol.CmdReady))
	l.Handle(1, cmdMsg(protocol.CmdBet, "100"))
	l.Handle(2, cmdMsg(protocol.CmdBet, "100"))
	require.Equal(t, Playing, room.State())

	alice := mustPlayer(t, l, 1)
	require.Same(t, alice, room.turnQueue[0])

	// Nothing happens while the timer is fresh.
	room.Advance()
	require.Same(t, alice, room.turnQueue[0])

	room.turnStart = time.Now().Add(-room.turnTimeout - time.Second)
	room.Advance()

	require.Len(t, room.turnQueue, 1)
	assert.Same(t, mustPlayer(t, l, 2), room.turnQueue[0], "timer restarted for the next holder")
	assert.Equal(t, Playing, room.State())
}

func TestRoom_TurnQueueInvariantOnRemoval(t *testing.T) {
	l, _ := newTestLobby(testOptions())
	seatPlayers(l, "alice", "bob", "carol")
	room := l.rooms[0]
	room.draw = scriptedDeck("KH", "9H", "KS", "9S", "KD", "QD", "KC", "QC")

	for id := uint32(1); id <= 3; id++ {
		l.Handle(id, cmdMsg(protocol.CmdReady))
	}
	for id := uint32(1); id <= 3; id++ {
		l.Handle(id, cmdMsg(protocol.CmdBet, "100"))
	}
	require.Equal(t, Playing, room.State())
	require.Len(t, room.turnQueue, 3)

	t.Run("removing the turn holder force-stands it", func(t *testing.T) {
		l.Handle(1, cmdMsg(protocol.CmdLeaveRoom))
		require.Len(t, room.turnQueue, 2)
		assert.Same(t, mustPlayer(t, l, 2), room.turnQueue[0])
		assert.Equal(t, 2, room.PlayerCount())
	})

	t.Run("removing a queued non-holder excises it", func(t *testing.T) {
		l.Handle(3, cmdMsg(protocol.CmdLeaveRoom))
		require.Len(t, room.turnQueue, 1)
		assert.Same(t, mustPlayer(t, l, 2), room.turnQueue[0])
	})

	// The queue head is always still seated.
	for _, queued := range room.turnQueue {
		found := false
		for _, seated := range room.players {
			if seated == queued {
				found = true
			}
		}
		assert.True(t, found)
	}
}

func TestRoom_WrongStateCommandsAreViolations(t *testing.T) {
	opts := testOptions()
	opts.FaultLimit = 2
	l, rec := newTestLobby(opts)
	seatPlayers(l, "alice")
	room := l.rooms[0]

	// Hitting during WaitingForPlayers is a protocol violation.
	l.Handle(1, cmdMsg(protocol.CmdHit))
	assert.True(t, rec.received(1, protocol.CmdNackCommand))
	p := mustPlayer(t, l, 1)
	assert.Equal(t, 1, p.Faults)

	l.Handle(1, cmdMsg(protocol.CmdHit))
	l.Handle(1, cmdMsg(protocol.CmdHit))

	assert.True(t, rec.received(1, protocol.CmdDisconnect))
	assert.True(t, rec.wasDropped(1))
	assert.Equal(t, 0, room.PlayerCount())
	_, ok := l.Player(1)
	assert.False(t, ok)
}

func TestRoom_PlayAgain(t *testing.T) {
	l, rec := newTestLobby(testOptions())
	seatPlayers(l, "alice")

	l.Handle(1, cmdMsg(protocol.CmdPlayAgain))
	assert.True(t, rec.received(1, protocol.CmdAckPlayAgain))

	p := mustPlayer(t, l, 1)
	p.Credits = 0
	rec.reset()
	l.Handle(1, cmdMsg(protocol.CmdPlayAgain))
	assert.True(t, rec.received(1, protocol.CmdNackPlay))
	assert.Zero(t, p.Faults, "being broke is not protocol abuse")
}

func TestRoom_ReconnectResync(t *testing.T) {
	l, rec := newTestLobby(testOptions())
	seatPlayers(l, "alice")
	room := l.rooms[0]

	rec.reset()
	l.Handle(1, cmdMsg(protocol.CmdReconnect))
	args, ok := rec.lastArgs(1, protocol.CmdRoomState)
	require.True(t, ok)
	assert.Equal(t, []string{room.RoomStateString()}, args)

	// Mid-round the resync is the game snapshot instead.
	room.draw = scriptedDeck("KH", "9H", "KS", "9S")
	l.Handle(1, cmdMsg(protocol.CmdReady))
	l.Handle(1, cmdMsg(protocol.CmdBet, "100"))
	require.Equal(t, Playing, room.State())

	rec.reset()
	l.Handle(1, cmdMsg(protocol.CmdReconnect))
	assert.True(t, rec.received(1, protocol.CmdGameState))
}

func TestRoom_OfflineSeatsDoNotStallTheRoom(t *testing.T) {
	l, _ := newTestLobby(testOptions())
	seatPlayers(l, "alice", "bob")
	room := l.rooms[0]
	room.draw = scriptedDeck("KH", "9H", "KS", "9S")

	// Bob drops before readying up; alice alone can still start a round.
	l.HandleDisconnect(2)
	l.Handle(1, cmdMsg(protocol.CmdReady))
	require.Equal(t, Betting, room.State())

	l.Handle(1, cmdMsg(protocol.CmdBet, "100"))
	require.Equal(t, Playing, room.State())

	// The offline, bet-less seat is left out of the deal and the queue.
	bob := room.players[1]
	assert.True(t, bob.Offline())
	assert.Empty(t, bob.Hand)
	require.Len(t, room.turnQueue, 1)
	assert.Same(t, mustPlayer(t, l, 1), room.turnQueue[0])
}

func mustPlayer(t *testing.T, l *Lobby, sessionID uint32) *Player {
	t.Helper()
	p, ok := l.Player(sessionID)
	require.True(t, ok)
	return p
}
