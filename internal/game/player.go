package game

import "time"

// PlayerState is a player's membership state within the server.
type PlayerState int

const (
	StateInLobby PlayerState = iota
	StateInRoom
	StateDisconnected
)

// String returns a human-readable name for the player state.
func (s PlayerState) String() string {
	switch s {
	case StateInLobby:
		return "InLobby"
	case StateInRoom:
		return "InRoom"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// DefaultCredits is the balance granted to every new session.
const DefaultCredits = 1000

// NoRoom marks a player that is not seated anywhere.
const NoRoom = -1

// Player is the server-side session entity: the identity and state bound to
// one client connection. A player with a bound nickname can outlive its
// connection and be reclaimed by a later login with the same nickname.
//
// The Lobby is the single owner of every Player; rooms and the reclaimable
// store only hold back-references. All fields are mutated exclusively on the
// event loop.
type Player struct {
	SessionID uint32
	Nickname  string
	State     PlayerState
	Credits   int
	RoomID    int

	// Per-round attributes, cleared by ResetRoundAttributes.
	Hand      []string
	BetAmount int
	HasTurn   bool
	Ready     bool
	PlacedBet bool

	Faults       int
	LastActivity time.Time
}

// NewPlayer creates a fresh anonymous session for the given connection key.
func NewPlayer(sessionID uint32) *Player {
	return &Player{
		SessionID:    sessionID,
		State:        StateInLobby,
		Credits:      DefaultCredits,
		RoomID:       NoRoom,
		LastActivity: time.Now(),
	}
}

// ResetRoundAttributes clears everything scoped to a single round: hand, bet,
// turn and readiness flags. Credits, identity, and seating survive.
func (p *Player) ResetRoundAttributes() {
	p.Hand = nil
	p.BetAmount = 0
	p.HasTurn = false
	p.Ready = false
	p.PlacedBet = false
}

// Offline reports whether the player is detached from a live connection.
func (p *Player) Offline() bool {
	return p.State == StateDisconnected
}

// Touch refreshes the activity clock used by the liveness sweep.
func (p *Player) Touch() {
	p.LastActivity = time.Now()
}

// InactiveFor returns how long the player has been silent.
func (p *Player) InactiveFor() time.Duration {
	return time.Since(p.LastActivity)
}

// ValidNickname reports whether nick satisfies the identity format: 3 to 16
// characters, each alphanumeric, underscore, or hyphen.
func ValidNickname(nick string) bool {
	if len(nick) < 3 || len(nick) > 16 {
		return false
	}

	for _, c := range nick {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}

	return true
}
