package game

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cyberinferno/blackjack-server/internal/protocol"
)

// sentMessage is one message captured by the sender recorder.
type sentMessage struct {
	session uint32
	cmd     protocol.Command
	args    []string
}

// senderRecorder implements Sender and records everything the game layer
// tried to deliver.
type senderRecorder struct {
	sent    []sentMessage
	dropped []uint32
}

func (s *senderRecorder) Send(sessionID uint32, cmd protocol.Command, args ...string) {
	s.sent = append(s.sent, sentMessage{session: sessionID, cmd: cmd, args: args})
}

func (s *senderRecorder) Drop(sessionID uint32) {
	s.dropped = append(s.dropped, sessionID)
}

// received reports whether cmd was sent to the session at any point.
func (s *senderRecorder) received(sessionID uint32, cmd protocol.Command) bool {
	for _, m := range s.sent {
		if m.session == sessionID && m.cmd == cmd {
			return true
		}
	}
	return false
}

// lastArgs returns the arguments of the most recent cmd sent to the session.
func (s *senderRecorder) lastArgs(sessionID uint32, cmd protocol.Command) ([]string, bool) {
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].session == sessionID && s.sent[i].cmd == cmd {
			return s.sent[i].args, true
		}
	}
	return nil, false
}

func (s *senderRecorder) wasDropped(sessionID uint32) bool {
	for _, id := range s.dropped {
		if id == sessionID {
			return true
		}
	}
	return false
}

func (s *senderRecorder) reset() {
	s.sent = nil
	s.dropped = nil
}

func testOptions() Options {
	return Options{
		Rooms:        2,
		FaultLimit:   5,
		ReclaimTTL:   time.Minute,
		TurnTimeout:  30 * time.Second,
		PingAfter:    3 * time.Second,
		TimeoutAfter: 10 * time.Second,
	}
}

func newTestLobby(opts Options) (*Lobby, *senderRecorder) {
	rec := &senderRecorder{}
	return NewLobby(rec, zerolog.Nop(), opts), rec
}

func cmdMsg(cmd protocol.Command, args ...string) protocol.Message {
	return protocol.Message{Command: cmd, Args: args, Valid: true}
}

// scriptedDeck replaces a room's draw func with a fixed card sequence,
// cycling if exhausted.
func scriptedDeck(cards ...string) func() string {
	i := 0
	return func() string {
		card := cards[i%len(cards)]
		i++
		return card
	}
}

// login creates a session and binds a nickname to it.
func login(l *Lobby, sessionID uint32, nick string) {
	l.AddPlayer(sessionID)
	l.Handle(sessionID, cmdMsg(protocol.CmdLogin, nick))
}
