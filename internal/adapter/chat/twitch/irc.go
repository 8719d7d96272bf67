package twitch

import (
	"errors"
	"strings"
)

// Message is one parsed IRC line with IRCv3 tags.
type Message struct {
	Tags    map[string]string
	Prefix  string
	Command string
	Params  []string
}

var errEmptyLine = errors.New("empty IRC line")

// ParseMessage parses a single IRC line (without the trailing CRLF).
func ParseMessage(line string) (*Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, errEmptyLine
	}

	msg := &Message{Tags: map[string]string{}}

	if strings.HasPrefix(line, "@") {
		raw, rest, ok := strings.Cut(line[1:], " ")
		if !ok {
			return nil, errors.New("IRC line has tags but no command")
		}
		for _, tag := range strings.Split(raw, ";") {
			if tag == "" {
				continue
			}
			k, v, _ := strings.Cut(tag, "=")
			msg.Tags[k] = unescapeTag(v)
		}
		line = strings.TrimLeft(rest, " ")
	}

	if strings.HasPrefix(line, ":") {
		prefix, rest, ok := strings.Cut(line[1:], " ")
		if !ok {
			return nil, errors.New("IRC line has prefix but no command")
		}
		msg.Prefix = prefix
		line = strings.TrimLeft(rest, " ")
	}

	var trailing string
	hasTrailing := false
	if i := strings.Index(line, " :"); i >= 0 {
		trailing = line[i+2:]
		line = line[:i]
		hasTrailing = true
	} else if strings.HasPrefix(line, ":") {
		trailing = line[1:]
		line = ""
		hasTrailing = true
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("IRC line has no command")
	}
	msg.Command = strings.ToUpper(fields[0])
	msg.Params = fields[1:]
	if hasTrailing {
		msg.Params = append(msg.Params, trailing)
	}
	return msg, nil
}

// Nick returns the nickname part of a nick!user@host prefix.
func (m *Message) Nick() string {
	nick, _, _ := strings.Cut(m.Prefix, "!")
	if strings.Contains(nick, ".") {
		return ""
	}
	return nick
}

// Param returns the i-th parameter or "".
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Trailing returns the last parameter.
func (m *Message) Trailing() string {
	return m.Param(len(m.Params) - 1)
}

// Channel returns the first parameter without its leading '#'.
func (m *Message) Channel() string {
	return strings.TrimPrefix(m.Param(0), "#")
}

func unescapeTag(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(v) {
			break
		}
		i++
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}
