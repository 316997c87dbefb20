package core

import (
	"math/rand"
	"strings"
	"sync/atomic"
	"time"
)

var ridSeq uint64

func newReqID() string {
	n := atomic.AddUint64(&ridSeq, 1)
	ts := time.Now().UnixNano()
	return base36(ts) + "-" + base36(int64(n)) + randSuffix(2)
}

func randSuffix(n int) string {
	const alpha = "abcdefghijklmnopqrstuvwxyz0123456789"
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alpha[rand.Intn(len(alpha))])
	}
	return b.String()
}

func base36(v int64) string {
	const chars = "0123456789abcdefghijklmnopqrstuvwxyz"
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var out [32]byte
	i := len(out)
	for v > 0 {
		i--
		out[i] = chars[v%36]
		v /= 36
	}
	return string(out[i:])
}

// tokenizeCommandLine splits command text into tokens while supporting
// quotes. Quoting matters here: source aliases are passed as
// `@group:"My Group"` and must survive as one token.
//
//	/set_channels @ch @grp:"Main Chat" -100123
func tokenizeCommandLine(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar byte
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if esc {
			buf.WriteByte(ch)
			esc = false
			continue
		}
		if ch == '\\' {
			esc = true
			continue
		}
		if inQ {
			if ch == qChar {
				inQ = false
				continue
			}
			buf.WriteByte(ch)
			continue
		}
		switch ch {
		case '"', '\'':
			inQ = true
			qChar = ch
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}

// commandArgsTail returns everything after the first token of text,
// whitespace-trimmed but otherwise verbatim. Used by commands that take
// free-form input (message templates keep their newlines and spacing).
func commandArgsTail(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	i := strings.IndexAny(text, " \t\n")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}
