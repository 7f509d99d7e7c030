package protocol

// Command is one 8-character command token of the wire protocol. Short
// commands are right-padded with underscores by convention. Inbound tokens
// are case-insensitive; the canonical (and emitted) form is uppercase.
type Command string

// Client-originated commands.
const (
	CmdLogin     Command = "LOGIN___" // bind a nickname to the session
	CmdJoinRoom  Command = "JOIN____" // join a room by numeric id
	CmdLeaveRoom Command = "LVRO____" // leave the current room
	CmdReady     Command = "RDY_____" // mark ready for the next round
	CmdNotReady  Command = "NRD_____" // revoke readiness
	CmdPlayAgain Command = "PAG_____" // prepare for the next round
	CmdBet       Command = "BT______" // place a bet
	CmdHit       Command = "HIT_____" // draw a card
	CmdStand     Command = "STAND___" // end the turn
	CmdReconnect Command = "REC__GAM" // request a full room/game resync
	CmdPing      Command = "PING____" // liveness probe
	CmdPong      Command = "PONG____" // liveness answer
)

// Server-originated commands.
const (
	CmdReqNick      Command = "REQ_NICK"
	CmdAckNick      Command = "ACK__NIC"
	CmdNackNick     Command = "NACK_NIC"
	CmdAckJoin      Command = "ACK__JON"
	CmdNackJoin     Command = "NACK_JON"
	CmdAckLeave     Command = "ACK_LVRO"
	CmdNackLeave    Command = "LEAVENCK"
	CmdLobbyInfo    Command = "LBBYINFO"
	CmdRoomState    Command = "ROMSTAUP"
	CmdGameState    Command = "GAMESTAT"
	CmdReqBet       Command = "REQ_BET_"
	CmdAckBet       Command = "ACK___BT"
	CmdNackBet      Command = "NACK__BT"
	CmdAckReady     Command = "ACK__RDY"
	CmdAckNotReady  Command = "ACK__NRD"
	CmdAckPlayAgain Command = "ACK__PAG"
	CmdNackPlay     Command = "NACK_PAG"
	CmdAckStand     Command = "ACK_STND"
	CmdNackStand    Command = "NACKSTND"
	CmdNackHit      Command = "NACK_HIT"
	CmdBust         Command = "BUST____"
	CmdHit21        Command = "HIT21___"
	CmdRoundEnd     Command = "ROUNDEND"
	CmdNackCommand  Command = "NACK_CMD"
	CmdAckPing      Command = "ACK_PING"
	CmdConnFail     Command = "CON_FAIL"
	CmdDisconnect   Command = "DISCONN_"
)

// CommandLength is the fixed width of every command token.
const CommandLength = 8
