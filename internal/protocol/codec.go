package protocol

import "strings"

// Header is the literal marker every message starts with.
const Header = "BJ"

// Message is one decoded protocol line. When Valid is false the line failed
// the header, width, or mandatory-field checks and Command/Args hold nothing
// useful; decoding never fails hard, malformed input only yields an invalid
// Message that the caller counts against the sender.
type Message struct {
	Command Command
	Args    []string
	Valid   bool
}

// Parse decodes a single line (without its terminator) into a Message.
// The grammar is `HEADER:COMMAND[:ARG]*`: colon-delimited fields, header
// exactly "BJ", command exactly 8 characters (normalized to uppercase).
// Remaining fields become positional arguments verbatim; the grammar has no
// escape for a literal colon inside an argument.
//
// Parameters:
//   - line: One logical line as produced by FrameDecoder
//
// Returns:
//   - The decoded Message; Valid is false for any malformed line
func Parse(line string) Message {
	if line == "" {
		return Message{}
	}

	tokens := strings.Split(line, ":")
	if len(tokens) < 2 {
		return Message{}
	}
	if tokens[0] != Header {
		return Message{}
	}
	if len(tokens[1]) != CommandLength {
		return Message{}
	}

	msg := Message{
		Command: Command(strings.ToUpper(tokens[1])),
		Valid:   true,
	}
	if len(tokens) > 2 {
		msg.Args = tokens[2:]
	}

	return msg
}

// Encode builds the wire form of an outbound message: `BJ:` followed by the
// command token, the colon-joined arguments, and a terminating newline. The
// message is constructed fresh on every call.
//
// Parameters:
//   - cmd: The 8-character command token
//   - args: Positional arguments, appended verbatim
//
// Returns:
//   - The newline-terminated wire bytes
func Encode(cmd Command, args ...string) []byte {
	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteByte(':')
	sb.WriteString(string(cmd))
	for _, arg := range args {
		sb.WriteByte(':')
		sb.WriteString(arg)
	}
	sb.WriteByte('\n')

	return []byte(sb.String())
}
