package game

import (
	"time"

	"github.com/cyberinferno/blackjack-server/internal/protocol"
)

// Sender delivers outbound protocol messages to sessions and severs
// connections. It is the only capability the game layer holds toward the
// transport; rooms and the lobby receive it at construction instead of
// reaching for a server singleton.
type Sender interface {
	// Send encodes and writes one message to the given session. Delivery is
	// best-effort; transport failures are the sender's problem, not the
	// caller's.
	Send(sessionID uint32, cmd protocol.Command, args ...string)

	// Drop closes the session's connection. The transport reports the close
	// back through its normal disconnect path.
	Drop(sessionID uint32)
}

// Options configures a Lobby and the rooms it owns.
type Options struct {
	// Rooms is the number of game rooms created at startup.
	Rooms int
	// FaultLimit is the number of protocol violations a session may
	// accumulate before it is forcibly disconnected. One limit covers both
	// malformed frames and wrong-state commands.
	FaultLimit int
	// ReclaimTTL is how long a disconnected, identified session stays
	// reclaimable by a login with the same nickname.
	ReclaimTTL time.Duration
	// TurnTimeout is how long the head of a turn queue may hold the turn
	// before being force-stood.
	TurnTimeout time.Duration
	// PingAfter is the inactivity threshold after which a session is probed.
	PingAfter time.Duration
	// TimeoutAfter is the inactivity threshold after which a session is
	// force-disconnected.
	TimeoutAfter time.Duration
}
