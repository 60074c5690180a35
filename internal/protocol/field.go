// Package protocol implements the textual wire format spoken between a panel
// and its controller.
//
// Inbound commands look like "[<port>|]<PREFIX><args>", for example
// "1|@PPN-Main;Home". Arguments follow the first '-' and are separated by ','
// or ';' depending on the command family. Outbound messages are the PUSH and
// KEY lines built in outbound.go.
package protocol

import (
	"math"
	"strconv"
	"strings"
)

// InvalidChannel is the entry GetRange produces for a token that is not a
// number. It never equals a real port or channel.
const InvalidChannel = math.MinInt

// maxRangeSpan caps how many entries a single interval segment may expand to.
const maxRangeSpan = 65535

// GetField strips the command token (everything up to and including the
// first '-') and returns the zero-based field index after splitting the
// remainder on sep. Out of range indexes return "".
func GetField(msg string, index int, sep string) string {
	if index < 0 {
		return ""
	}
	fields := splitArgs(msg, sep)
	if index >= len(fields) {
		return ""
	}
	return fields[index]
}

// GetTail is GetField for the last argument of a command: it returns field
// index and every field after it joined back with sep, so free text may
// contain the separator.
func GetTail(msg string, index int, sep string) string {
	if index < 0 {
		return ""
	}
	fields := splitArgs(msg, sep)
	if index >= len(fields) {
		return ""
	}
	return strings.Join(fields[index:], sep)
}

// FieldCount returns how many sep separated fields follow the command token.
func FieldCount(msg, sep string) int {
	return len(splitArgs(msg, sep))
}

func splitArgs(msg, sep string) []string {
	if i := strings.IndexByte(msg, '-'); i >= 0 {
		msg = msg[i+1:]
	}
	if sep == "" {
		return []string{msg}
	}
	return strings.Split(msg, sep)
}

// GetRange expands an address specifier into channel numbers.
//
//	"12"      -> [12]
//	"3&7&9"   -> [3 7 9]
//	"5.8"     -> [5 6 7]   (upper bound exclusive)
//	"3&7.9"   -> [3 7 8]
//
// Order follows the specifier. A token that is not a number yields
// InvalidChannel; an interval with a bad bound contributes nothing.
func GetRange(spec string) []int {
	var out []int
	for _, seg := range strings.Split(spec, "&") {
		seg = strings.TrimSpace(seg)
		lo, hi, ok := strings.Cut(seg, ".")
		if !ok {
			n, err := strconv.Atoi(seg)
			if err != nil {
				out = append(out, InvalidChannel)
				continue
			}
			out = append(out, n)
			continue
		}

		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil {
			continue
		}
		if b-a > maxRangeSpan {
			b = a + maxRangeSpan
		}
		for n := a; n < b; n++ {
			out = append(out, n)
		}
	}
	return out
}

// SplitPort separates the optional "<port>|" prefix from a raw message.
// Without a '|' the port is 0 and the whole string is the command.
func SplitPort(raw string) (int, string) {
	p, cmd, ok := strings.Cut(raw, "|")
	if !ok {
		return 0, raw
	}
	port, err := strconv.Atoi(strings.TrimSpace(p))
	if err != nil {
		return 0, cmd
	}
	return port, cmd
}

// CommandToken returns the text before the first '-' of a command.
func CommandToken(cmd string) string {
	if i := strings.IndexByte(cmd, '-'); i >= 0 {
		return cmd[:i]
	}
	return cmd
}

// Atoi parses a decimal field, returning InvalidChannel when it is not a
// number. Handlers use it for numeric arguments so a malformed field never
// matches a real address.
func Atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return InvalidChannel
	}
	return n
}
