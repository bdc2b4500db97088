package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedReply is returned when an inbound line does not match
// the reply grammar. Callers log and drop such lines.
var ErrMalformedReply = errors.New("protocol: malformed reply")

// Reply is one parsed acknowledgement line from the wire.
type Reply struct {
	// FlowerID is the wire address that answered.
	FlowerID int

	// Ack is true for ACK, false for NACK.
	Ack bool

	// Text is the optional payload after the colon, e.g. a firmware
	// version in an INIT acknowledgement.
	Text string
}

// ParseReply parses one reply line.
//
// Grammar: "<id>/ACK[:<text>]" or "<id>/NACK[:<text>]". A trailing
// carriage return is tolerated; some firmware revisions emit CRLF.
func ParseReply(line string) (Reply, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return Reply{}, fmt.Errorf("%w: empty line", ErrMalformedReply)
	}

	idPart, rest, found := strings.Cut(line, "/")
	if !found {
		return Reply{}, fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}

	id, err := strconv.Atoi(idPart)
	if err != nil || id < 0 {
		return Reply{}, fmt.Errorf("%w: bad address in %q", ErrMalformedReply, line)
	}

	verb, text, _ := strings.Cut(rest, ":")
	switch verb {
	case "ACK":
		return Reply{FlowerID: id, Ack: true, Text: text}, nil
	case "NACK":
		return Reply{FlowerID: id, Ack: false, Text: text}, nil
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}
}
