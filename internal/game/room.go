package game

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyberinferno/blackjack-server/internal/protocol"
)

// RoomState is the phase of a room's round state machine.
type RoomState int

const (
	WaitingForPlayers RoomState = iota
	Betting
	Playing
	RoundEnd
)

// String returns a human-readable name for the room state.
func (s RoomState) String() string {
	switch s {
	case WaitingForPlayers:
		return "WaitingForPlayers"
	case Betting:
		return "Betting"
	case Playing:
		return "Playing"
	case RoundEnd:
		return "RoundEnd"
	default:
		return "Unknown"
	}
}

// MaxSeats is the fixed seating capacity of every room.
const MaxSeats = 7

// Room runs one blackjack round state machine over a fixed-capacity seating.
// Rooms are created once at startup, never destroyed, and cycle back to
// WaitingForPlayers after every round.
//
// The mutex guards the seats and round state; under the current single event
// loop every call already arrives serialized, but the guard keeps the room
// safe for a multi-goroutine dispatcher.
type Room struct {
	mu    sync.Mutex
	id    int
	lobby *Lobby
	log   zerolog.Logger

	state       RoomState
	players     []*Player
	dealerCards []string
	turnQueue   []*Player
	turnStart   time.Time
	turnTimeout time.Duration

	// draw produces the next card; swapped out by tests for a scripted deck.
	draw func() string
}

func newRoom(id int, lobby *Lobby, turnTimeout time.Duration, log zerolog.Logger) *Room {
	return &Room{
		id:          id,
		lobby:       lobby,
		log:         log.With().Int("room", id).Logger(),
		state:       WaitingForPlayers,
		turnTimeout: turnTimeout,
		draw:        RandomCard,
	}
}

// ID returns the room identifier.
func (r *Room) ID() int { return r.id }

// State returns the current phase of the round state machine.
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PlayerCount returns the number of seated players, online or not.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// AddPlayer seats the player. The caller (the lobby) has already verified
// capacity and room state.
func (r *Room) AddPlayer(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= MaxSeats {
		r.log.Error().Str("nick", p.Nickname).Msg("room is full")
		return
	}

	r.players = append(r.players, p)
	r.log.Info().Str("nick", p.Nickname).Msg("player seated")
}

// RemovePlayer unseats the player, preserving the turn-queue invariant: a
// removed turn holder is force-stood first so the queue head is always a
// still-seated player.
func (r *Room) RemovePlayer(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removePlayerLocked(p)
}

func (r *Room) removePlayerLocked(p *Player) {
	idx := -1
	for i, seated := range r.players {
		if seated == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	if len(r.turnQueue) > 0 && r.turnQueue[0] == p {
		r.standLocked(p)
		r.broadcastLocked(protocol.CmdGameState, r.gameStateLocked())
	} else {
		for i, queued := range r.turnQueue {
			if queued == p {
				r.turnQueue = append(r.turnQueue[:i], r.turnQueue[i+1:]...)
				break
			}
		}
	}

	r.players = append(r.players[:idx], r.players[idx+1:]...)
	p.RoomID = NoRoom
	p.ResetRoundAttributes()
	if !p.Offline() {
		p.State = StateInLobby
	}

	r.log.Info().Str("nick", p.Nickname).Msg("player unseated")
}

// Broadcast sends one message to every seated, online player.
func (r *Room) Broadcast(cmd protocol.Command, args ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(cmd, args...)
}

func (r *Room) broadcastLocked(cmd protocol.Command, args ...string) {
	for _, p := range r.players {
		if p.Offline() {
			continue
		}
		r.lobby.sender.Send(p.SessionID, cmd, args...)
	}
}

// Handle processes one in-room command from a seated player, then advances
// the state machine.
func (r *Room) Handle(p *Player, msg protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Debug().Str("nick", p.Nickname).Str("cmd", string(msg.Command)).Msg("room command")

	// A resync request is honored in any state.
	if msg.Command == protocol.CmdReconnect {
		if r.state == Playing {
			r.broadcastLocked(protocol.CmdGameState, r.gameStateLocked())
		} else {
			r.broadcastLocked(protocol.CmdRoomState, r.roomStateLocked())
		}
		return
	}

	switch r.state {
	case WaitingForPlayers:
		r.handleWaitingLocked(p, msg)
		r.broadcastLocked(protocol.CmdRoomState, r.roomStateLocked())
	case Betting:
		r.handleBettingLocked(p, msg)
		r.broadcastLocked(protocol.CmdRoomState, r.roomStateLocked())
	case Playing:
		r.handlePlayingLocked(p, msg)
		r.broadcastLocked(protocol.CmdGameState, r.gameStateLocked())
	case RoundEnd:
		r.handleRoundEndLocked(p, msg)
		r.broadcastLocked(protocol.CmdRoomState, r.roomStateLocked())
	}

	r.advanceLocked()
}

// Advance runs one tick of the room state machine: phase transitions, the
// turn timer, and the end-of-round reset. It is called by the lobby on every
// server tick and needs no live socket, so it is testable in isolation.
func (r *Room) Advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanceLocked()
}

func (r *Room) advanceLocked() {
	switch r.state {
	case WaitingForPlayers:
		if r.onlineCountLocked() >= 1 && r.allReadyLocked() {
			r.state = Betting
			r.lobby.markDirty()
			r.log.Info().Msg("transitioning to Betting")
			r.broadcastLocked(protocol.CmdReqBet)
		}

	case Betting:
		if r.allBetsPlacedLocked() {
			r.state = Playing
			r.lobby.markDirty()
			r.log.Info().Msg("transitioning to Playing")
			r.dealLocked()
			r.turnStart = time.Now()
			r.broadcastLocked(protocol.CmdGameState, r.gameStateLocked())
		}

	case Playing:
		if len(r.turnQueue) == 0 {
			r.state = RoundEnd
			r.log.Info().Msg("transitioning to RoundEnd")
			r.dealerPlayLocked()
			r.broadcastLocked(protocol.CmdGameState, r.gameStateLocked())
			for _, p := range r.players {
				winnings := r.settleLocked(p)
				if !p.Offline() {
					r.lobby.sender.Send(p.SessionID, protocol.CmdRoundEnd,
						fmt.Sprintf("%d;%d", p.Credits, winnings))
				}
			}
		} else if time.Since(r.turnStart) >= r.turnTimeout {
			holder := r.turnQueue[0]
			r.log.Info().Str("nick", holder.Nickname).Msg("turn timed out, auto-standing")
			r.standLocked(holder)
			r.broadcastLocked(protocol.CmdGameState, r.gameStateLocked())
		}

	case RoundEnd:
		r.resetLocked()
		r.lobby.markDirty()
		r.log.Info().Msg("transitioning to WaitingForPlayers")
	}
}

// ResetDefaultState returns the room to WaitingForPlayers and clears every
// per-round attribute of the remaining seats.
func (r *Room) ResetDefaultState() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

func (r *Room) resetLocked() {
	r.state = WaitingForPlayers
	r.dealerCards = nil
	r.turnQueue = nil

	for _, p := range r.players {
		p.ResetRoundAttributes()
	}
	if len(r.players) > 0 {
		r.broadcastLocked(protocol.CmdRoomState, r.roomStateLocked())
	}
}

func (r *Room) handleWaitingLocked(p *Player, msg protocol.Message) {
	switch msg.Command {
	case protocol.CmdReady:
		p.Ready = true
		r.log.Info().Str("nick", p.Nickname).Msg("player ready")
		r.lobby.sender.Send(p.SessionID, protocol.CmdAckReady)

	case protocol.CmdNotReady:
		p.Ready = false
		r.log.Info().Str("nick", p.Nickname).Msg("player not ready")
		r.lobby.sender.Send(p.SessionID, protocol.CmdAckNotReady)

	case protocol.CmdPlayAgain:
		r.handlePlayAgainLocked(p)

	default:
		r.violationLocked(p, "Invalid command during WaitingForPlayers")
	}
}

func (r *Room) handleBettingLocked(p *Player, msg protocol.Message) {
	if msg.Command != protocol.CmdBet {
		r.violationLocked(p, "Invalid command during Betting")
		return
	}
	if len(msg.Args) < 1 {
		r.lobby.sender.Send(p.SessionID, protocol.CmdNackBet, "Invalid bet amount")
		return
	}

	amount, err := strconv.Atoi(msg.Args[0])
	if err != nil {
		r.lobby.sender.Send(p.SessionID, protocol.CmdNackBet, "Invalid bet amount")
		return
	}

	if amount <= 0 || amount > p.Credits || p.PlacedBet {
		r.log.Info().Str("nick", p.Nickname).Int("amount", amount).Msg("rejected bet")
		r.lobby.sender.Send(p.SessionID, protocol.CmdNackBet, "Invalid bet amount")
		return
	}

	// Escrow the bet until settlement.
	p.Credits -= amount
	p.BetAmount = amount
	p.PlacedBet = true
	r.log.Info().Str("nick", p.Nickname).Int("amount", amount).Msg("bet placed")
	r.lobby.sender.Send(p.SessionID, protocol.CmdAckBet, strconv.Itoa(amount))
}

func (r *Room) handlePlayingLocked(p *Player, msg protocol.Message) {
	switch msg.Command {
	case protocol.CmdHit:
		if !r.hitLocked(p) {
			r.lobby.sender.Send(p.SessionID, protocol.CmdNackHit, "Cannot hit at this time")
			return
		}

		total := HandValue(p.Hand)
		if total > 21 {
			r.log.Info().Str("nick", p.Nickname).Msg("player busted")
			r.standLocked(p)
			r.lobby.sender.Send(p.SessionID, protocol.CmdBust)
		} else if total == 21 {
			r.log.Info().Str("nick", p.Nickname).Msg("player hit 21")
			r.standLocked(p)
			r.lobby.sender.Send(p.SessionID, protocol.CmdHit21)
		}

	case protocol.CmdStand:
		if len(r.turnQueue) == 0 || r.turnQueue[0] != p {
			r.lobby.sender.Send(p.SessionID, protocol.CmdNackStand, "Not your turn")
			return
		}
		r.standLocked(p)
		r.lobby.sender.Send(p.SessionID, protocol.CmdAckStand)

	default:
		r.violationLocked(p, "Invalid command during Playing")
	}
}

func (r *Room) handleRoundEndLocked(p *Player, msg protocol.Message) {
	if msg.Command != protocol.CmdPlayAgain {
		r.violationLocked(p, "Invalid command during RoundEnd")
		return
	}
	r.handlePlayAgainLocked(p)
}

func (r *Room) handlePlayAgainLocked(p *Player) {
	if p.Credits <= 0 {
		r.log.Info().Str("nick", p.Nickname).Msg("cannot continue without credits")
		r.lobby.sender.Send(p.SessionID, protocol.CmdNackPlay, "Insufficient credits to continue")
		return
	}
	r.log.Info().Str("nick", p.Nickname).Msg("preparing for next round")
	r.lobby.sender.Send(p.SessionID, protocol.CmdAckPlayAgain, strconv.Itoa(r.id))
}

func (r *Room) violationLocked(p *Player, reason string) {
	r.lobby.sender.Send(p.SessionID, protocol.CmdNackCommand, reason)

	p.Faults++
	if p.Faults > r.lobby.opts.FaultLimit {
		r.log.Warn().Str("nick", p.Nickname).Int("faults", p.Faults).Msg("fault limit exceeded")
		r.lobby.sender.Send(p.SessionID, protocol.CmdDisconnect, "Too many invalid messages")
		r.removePlayerLocked(p)
		r.lobby.destroyPlayer(p)
	}
}

// hitLocked deals one card to p if p holds the turn and is under 21.
func (r *Room) hitLocked(p *Player) bool {
	if len(r.turnQueue) == 0 || r.turnQueue[0] != p {
		return false
	}
	if HandValue(p.Hand) >= 21 {
		return false
	}

	p.Hand = append(p.Hand, r.draw())
	r.turnStart = time.Now()
	return true
}

// standLocked removes p from the head of the turn queue and restarts the
// turn timer. A stand by anyone but the turn holder is a no-op.
func (r *Room) standLocked(p *Player) {
	if len(r.turnQueue) == 0 || r.turnQueue[0] != p {
		return
	}

	r.turnQueue = r.turnQueue[1:]
	r.turnStart = time.Now()
}

// dealLocked gives the dealer and every betting seat two cards and builds the
// turn queue in seating order. Seats that never bet (offline since before the
// round) are left out of the deal.
func (r *Room) dealLocked() {
	r.dealerCards = []string{r.draw(), r.draw()}

	r.turnQueue = nil
	for _, p := range r.players {
		if !p.PlacedBet {
			continue
		}
		p.Hand = []string{r.draw(), r.draw()}
		r.turnQueue = append(r.turnQueue, p)
	}
}

// dealerPlayLocked plays the fixed house strategy: draw while under 17.
func (r *Room) dealerPlayLocked() {
	for HandValue(r.dealerCards) < 17 {
		r.dealerCards = append(r.dealerCards, r.draw())
	}
}

// settleLocked applies the round outcome to p's balance and returns the net
// change. The bet was escrowed at placement, so a push credits it back, a
// win credits double, and a two-card natural credits 1.5x (truncated).
func (r *Room) settleLocked(p *Player) int {
	handValue := HandValue(p.Hand)
	dealerValue := HandValue(r.dealerCards)

	var winnings int
	switch {
	case handValue > 21 || (dealerValue <= 21 && dealerValue > handValue):
		winnings = -p.BetAmount
		r.log.Info().Str("nick", p.Nickname).Msg("player lost the round")
	case handValue == dealerValue:
		winnings = p.BetAmount
		p.Credits += winnings
		r.log.Info().Str("nick", p.Nickname).Msg("player pushed the round")
	case IsBlackjack(p.Hand):
		winnings = p.BetAmount * 3 / 2
		p.Credits += winnings
		r.log.Info().Str("nick", p.Nickname).Msg("player got blackjack")
	default:
		winnings = p.BetAmount * 2
		p.Credits += winnings
		r.log.Info().Str("nick", p.Nickname).Msg("player won the round")
	}

	return winnings
}

// allReadyLocked reports whether every online seat is ready. Offline seats do
// not block the next round.
func (r *Room) allReadyLocked() bool {
	for _, p := range r.players {
		if p.Offline() {
			continue
		}
		if !p.Ready {
			return false
		}
	}
	return true
}

// allBetsPlacedLocked reports whether every online seat has bet and at least
// one bet exists at all.
func (r *Room) allBetsPlacedLocked() bool {
	any := false
	for _, p := range r.players {
		if p.PlacedBet {
			any = true
			continue
		}
		if !p.Offline() {
			return false
		}
	}
	return any
}

// seatedOfflinePlayers returns the seats currently detached from a live
// connection, for the lobby's reclaim-expiry check.
func (r *Room) seatedOfflinePlayers() []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	var offline []*Player
	for _, p := range r.players {
		if p.Offline() {
			offline = append(offline, p)
		}
	}
	return offline
}

func (r *Room) onlineCountLocked() int {
	n := 0
	for _, p := range r.players {
		if !p.Offline() {
			n++
		}
	}
	return n
}

// RoomStateString renders the lobby-style room snapshot:
// `P;<nick>;<0|1|2>;BET;<amount>:` per seat, where the flag is 1 for ready
// and 2 for offline.
func (r *Room) RoomStateString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomStateLocked()
}

func (r *Room) roomStateLocked() string {
	state := ""
	for _, p := range r.players {
		state += "P;" + p.Nickname + ";" + seatFlag(p.Offline(), p.Ready) +
			";BET;" + strconv.Itoa(p.BetAmount) + ":"
	}
	return state
}

// GameStateString renders the mid-round snapshot: the dealer hand followed by
// `P;<nick>;<0|1|2>;<hand>:` per seat, where the flag is 1 for the turn
// holder and 2 for offline. Turn flags are refreshed as a side effect.
func (r *Room) GameStateString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameStateLocked()
}

func (r *Room) gameStateLocked() string {
	state := "D;" + FormatHand(r.dealerCards) + ":"
	for _, p := range r.players {
		p.HasTurn = len(r.turnQueue) > 0 && r.turnQueue[0] == p
		state += "P;" + p.Nickname + ";" + seatFlag(p.Offline(), p.HasTurn) +
			";" + FormatHand(p.Hand) + ":"
	}
	return state
}

func seatFlag(offline, active bool) string {
	switch {
	case offline:
		return "2"
	case active:
		return "1"
	default:
		return "0"
	}
}
