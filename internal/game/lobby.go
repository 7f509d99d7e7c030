package game

import (
	"strconv"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/cyberinferno/blackjack-server/internal/protocol"
)

// Lobby is the process-wide directory and router: the single owner of every
// Player, the reclaimable-session store, and the fixed room table, and the
// dispatch target for every decoded command.
//
// All methods must be called from the server's event loop. The reclaimable
// store is a TTL cache with its janitor disabled so expiry is also observed
// only on the loop (during the liveness sweep).
type Lobby struct {
	sender Sender
	log    zerolog.Logger
	opts   Options

	players     map[uint32]*Player
	reclaimable *cache.Cache
	rooms       []*Room

	dirty bool
}

// NewLobby creates the directory with opts.Rooms rooms. Rooms live for the
// whole process; they are cyclically reset, never destroyed.
func NewLobby(sender Sender, log zerolog.Logger, opts Options) *Lobby {
	l := &Lobby{
		sender:      sender,
		log:         log.With().Str("component", "lobby").Logger(),
		opts:        opts,
		players:     make(map[uint32]*Player),
		reclaimable: cache.New(opts.ReclaimTTL, 0),
	}

	for i := 0; i < opts.Rooms; i++ {
		l.rooms = append(l.rooms, newRoom(i, l, opts.TurnTimeout, log))
	}
	l.log.Info().Int("rooms", opts.Rooms).Msg("initialized game rooms")

	return l
}

// PlayerCount returns the number of active (connected) sessions.
func (l *Lobby) PlayerCount() int {
	return len(l.players)
}

// Player returns the session for the given connection key.
func (l *Lobby) Player(sessionID uint32) (*Player, bool) {
	p, ok := l.players[sessionID]
	return p, ok
}

// AddPlayer creates an anonymous session for a freshly accepted connection
// and asks it to identify itself.
func (l *Lobby) AddPlayer(sessionID uint32) {
	l.players[sessionID] = NewPlayer(sessionID)
	l.log.Debug().Uint32("session", sessionID).Msg("player added")
	l.sender.Send(sessionID, protocol.CmdReqNick)
}

// HandleDisconnect detaches the session from its connection. Identified
// players stay seated and become reclaimable by a later login with the same
// nickname until the reclaim TTL runs out; anonymous ones are destroyed.
func (l *Lobby) HandleDisconnect(sessionID uint32) {
	p, ok := l.players[sessionID]
	if !ok {
		return
	}
	delete(l.players, sessionID)
	l.markDirty()

	if p.Nickname == "" {
		l.log.Debug().Uint32("session", sessionID).Msg("anonymous player destroyed")
		return
	}

	p.State = StateDisconnected
	l.reclaimable.Set(p.Nickname, p, cache.DefaultExpiration)
	l.log.Info().Str("nick", p.Nickname).Msg("player disconnected, reclaimable")

	if room := l.roomOf(p); room != nil {
		if room.State() == Playing {
			room.Broadcast(protocol.CmdGameState, room.GameStateString())
		} else {
			room.Broadcast(protocol.CmdRoomState, room.RoomStateString())
		}
	}
}

// Touch refreshes the session's activity clock.
func (l *Lobby) Touch(sessionID uint32) {
	if p, ok := l.players[sessionID]; ok {
		p.Touch()
	}
}

// HandleInvalidFrame counts one malformed line against the session.
func (l *Lobby) HandleInvalidFrame(sessionID uint32) {
	if p, ok := l.players[sessionID]; ok {
		l.penalize(p)
	}
}

// Handle routes one decoded command. Identity is enforced first: everything
// but login is a protocol violation until a nickname is bound.
func (l *Lobby) Handle(sessionID uint32, msg protocol.Message) {
	p, ok := l.players[sessionID]
	if !ok {
		return
	}

	if p.Nickname == "" && msg.Command != protocol.CmdLogin {
		l.log.Warn().Uint32("session", sessionID).Str("cmd", string(msg.Command)).
			Msg("command before login")
		l.sender.Send(sessionID, protocol.CmdReqNick)
		l.penalize(p)
		return
	}

	switch {
	case msg.Command == protocol.CmdLeaveRoom:
		l.handleLeaveRoom(p)

	case p.State == StateInRoom:
		// Everything else from a seated player belongs to its room.
		if room := l.roomOf(p); room != nil {
			room.Handle(p, msg)
		} else {
			l.log.Error().Str("nick", p.Nickname).Int("room", p.RoomID).Msg("player in unknown room")
		}

	case msg.Command == protocol.CmdLogin:
		l.handleLogin(p, msg)

	case msg.Command == protocol.CmdJoinRoom:
		l.handleJoinRoom(p, msg)

	case msg.Command == protocol.CmdReconnect:
		// Not seated: a lobby-style acknowledgment is all there is to resync.
		l.sender.Send(p.SessionID, protocol.CmdLobbyInfo, l.lobbyStateString())

	default:
		l.log.Warn().Str("nick", p.Nickname).Str("cmd", string(msg.Command)).Msg("unknown command")
		l.sender.Send(p.SessionID, protocol.CmdNackCommand, "Unknown command")
		l.penalize(p)
	}
}

func (l *Lobby) handleLogin(p *Player, msg protocol.Message) {
	if len(msg.Args) < 1 || msg.Args[0] == "" {
		l.sender.Send(p.SessionID, protocol.CmdNackNick, "Nickname required")
		return
	}
	nick := msg.Args[0]

	if p.Nickname != "" {
		if nick == p.Nickname {
			l.sender.Send(p.SessionID, protocol.CmdAckNick, nick+";"+strconv.Itoa(p.Credits))
			return
		}
		l.log.Warn().Str("nick", p.Nickname).Str("requested", nick).Msg("rename attempt")
		l.sender.Send(p.SessionID, protocol.CmdNackNick, "Already logged in")
		l.penalize(p)
		return
	}

	if l.nicknameTaken(nick) {
		l.sender.Send(p.SessionID, protocol.CmdNackNick, "Nickname already taken")
		return
	}

	if v, ok := l.reclaimable.Get(nick); ok {
		l.reclaim(p, v.(*Player))
		return
	}

	if !ValidNickname(nick) {
		l.sender.Send(p.SessionID, protocol.CmdNackNick, "Invalid nickname")
		return
	}

	p.Nickname = nick
	l.log.Info().Uint32("session", p.SessionID).Str("nick", nick).Msg("player logged in")
	l.sender.Send(p.SessionID, protocol.CmdAckNick, nick+";"+strconv.Itoa(p.Credits))
	l.markDirty()
}

// reclaim rebinds a disconnected session to the fresh connection: the old
// Player object, with its credits, seat, and hand, takes over the new
// connection key and the placeholder session is discarded.
func (l *Lobby) reclaim(fresh *Player, old *Player) {
	l.reclaimable.Delete(old.Nickname)

	old.SessionID = fresh.SessionID
	old.Faults = 0
	old.Touch()
	if old.RoomID != NoRoom {
		old.State = StateInRoom
	} else {
		old.State = StateInLobby
	}
	l.players[fresh.SessionID] = old

	l.log.Info().Uint32("session", old.SessionID).Str("nick", old.Nickname).Msg("player reclaimed session")
	l.sender.Send(old.SessionID, protocol.CmdAckNick, old.Nickname+";"+strconv.Itoa(old.Credits))
	l.markDirty()

	if room := l.roomOf(old); room != nil {
		if room.State() == Playing {
			room.Broadcast(protocol.CmdGameState, room.GameStateString())
		} else {
			room.Broadcast(protocol.CmdRoomState, room.RoomStateString())
		}
	}
}

func (l *Lobby) handleJoinRoom(p *Player, msg protocol.Message) {
	if len(msg.Args) < 1 {
		l.log.Warn().Str("nick", p.Nickname).Msg("join without room id")
		l.sender.Send(p.SessionID, protocol.CmdNackJoin, "Missing room ID")
		return
	}

	roomID, err := strconv.Atoi(msg.Args[0])
	if err != nil || roomID < 0 || roomID >= len(l.rooms) {
		l.sender.Send(p.SessionID, protocol.CmdNackJoin, "Invalid room ID")
		return
	}

	room := l.rooms[roomID]
	if room.PlayerCount() >= MaxSeats || room.State() != WaitingForPlayers || p.Credits <= 0 {
		l.log.Info().Str("nick", p.Nickname).Int("room", roomID).Msg("join refused")
		l.sender.Send(p.SessionID, protocol.CmdNackJoin, "Cannot join room")
		return
	}

	room.AddPlayer(p)
	p.RoomID = roomID
	p.State = StateInRoom
	l.markDirty()
	l.log.Info().Str("nick", p.Nickname).Int("room", roomID).Msg("player joined room")
	l.sender.Send(p.SessionID, protocol.CmdAckJoin)
	room.Broadcast(protocol.CmdRoomState, room.RoomStateString())
}

func (l *Lobby) handleLeaveRoom(p *Player) {
	room := l.roomOf(p)
	if room == nil {
		l.log.Warn().Str("nick", p.Nickname).Int("room", p.RoomID).Msg("leave without valid room")
		l.sender.Send(p.SessionID, protocol.CmdNackLeave, "Not in a valid room")
		return
	}

	room.RemovePlayer(p)
	l.sender.Send(p.SessionID, protocol.CmdAckLeave)
	l.markDirty()

	if room.PlayerCount() == 0 {
		room.ResetDefaultState()
		l.log.Info().Int("room", room.ID()).Msg("room reset to default state, no players left")
		return
	}
	if room.State() == WaitingForPlayers {
		room.Broadcast(protocol.CmdRoomState, room.RoomStateString())
	}
}

// Update rebroadcasts the lobby summary to identified, un-seated players when
// it has been marked dirty. Edge-triggered: a clean lobby sends nothing.
func (l *Lobby) Update() {
	if !l.dirty {
		return
	}
	l.dirty = false

	state := l.lobbyStateString()
	for _, p := range l.players {
		if p.Nickname == "" || p.State != StateInLobby {
			continue
		}
		l.sender.Send(p.SessionID, protocol.CmdLobbyInfo, state)
	}
}

// AdvanceRooms runs one state-machine tick on every room.
func (l *Lobby) AdvanceRooms() {
	for _, room := range l.rooms {
		room.Advance()
	}
}

// SweepLiveness probes sessions approaching the inactivity limit, drops the
// ones past it, and unseats offline players whose reclaim window expired.
func (l *Lobby) SweepLiveness() {
	ids := make([]uint32, 0, len(l.players))
	for id := range l.players {
		ids = append(ids, id)
	}

	for _, id := range ids {
		p, ok := l.players[id]
		if !ok {
			continue
		}

		inactive := p.InactiveFor()
		if inactive >= l.opts.TimeoutAfter {
			l.log.Info().Uint32("session", id).Str("nick", p.Nickname).Msg("client timed out, no heartbeat")
			l.sender.Drop(id)
		} else if inactive >= l.opts.PingAfter {
			l.sender.Send(id, protocol.CmdPing)
		}
	}

	l.purgeExpired()
}

// purgeExpired unseats offline players that can no longer be reclaimed.
func (l *Lobby) purgeExpired() {
	for _, room := range l.rooms {
		for _, p := range room.seatedOfflinePlayers() {
			if _, ok := l.reclaimable.Get(p.Nickname); ok {
				continue
			}
			l.log.Info().Str("nick", p.Nickname).Int("room", room.ID()).
				Msg("reclaim window expired, unseating")
			room.RemovePlayer(p)
			if room.PlayerCount() == 0 {
				room.ResetDefaultState()
			}
			l.markDirty()
		}
	}

	l.reclaimable.DeleteExpired()
}

// penalize counts one protocol violation and, past the configured limit,
// disconnects and purges the session. Domain refusals never come through
// here.
func (l *Lobby) penalize(p *Player) {
	p.Faults++
	if p.Faults <= l.opts.FaultLimit {
		return
	}

	l.log.Warn().Uint32("session", p.SessionID).Str("nick", p.Nickname).
		Int("faults", p.Faults).Msg("fault limit exceeded, kicking")
	l.sender.Send(p.SessionID, protocol.CmdDisconnect, "Too many invalid messages")
	if room := l.roomOf(p); room != nil {
		room.RemovePlayer(p)
	}
	l.destroyPlayer(p)
}

// destroyPlayer removes the session permanently: no reclamation, connection
// dropped. Any room seat must already be released.
func (l *Lobby) destroyPlayer(p *Player) {
	delete(l.players, p.SessionID)
	if p.Nickname != "" {
		l.reclaimable.Delete(p.Nickname)
	}
	l.markDirty()
	l.sender.Drop(p.SessionID)
}

func (l *Lobby) roomOf(p *Player) *Room {
	if p.RoomID < 0 || p.RoomID >= len(l.rooms) {
		return nil
	}
	return l.rooms[p.RoomID]
}

func (l *Lobby) nicknameTaken(nick string) bool {
	for _, p := range l.players {
		if p.Nickname == nick {
			return true
		}
	}
	return false
}

func (l *Lobby) markDirty() {
	l.dirty = true
}

// lobbyStateString renders the lobby summary:
// `ONLINE;<n>:ROOMS;<m>:R<id>;<occupancy>/<cap>;<state>:…`
func (l *Lobby) lobbyStateString() string {
	state := "ONLINE;" + strconv.Itoa(len(l.players)) + ":"
	state += "ROOMS;" + strconv.Itoa(len(l.rooms)) + ":"
	for _, room := range l.rooms {
		state += "R" + strconv.Itoa(room.ID()) + ";" +
			strconv.Itoa(room.PlayerCount()) + "/" + strconv.Itoa(MaxSeats) + ";" +
			strconv.Itoa(int(room.State())) + ":"
	}
	return state
}
