// Package extract pulls a best-effort plain-text rendering out of raw
// statement document bytes. Statement PDFs from the supported bank store
// their text either as literal string objects "(...)" or as hex string
// objects "<...>" in the content streams; each convention gets its own
// strategy and the first strategy that yields anything wins. OCR for
// image-only documents lives elsewhere (internal/recognize).
package extract

import (
	"encoding/hex"
	"strings"
)

// Strategy extracts text blocks from the decoded document body. Returns the
// blocks in order of appearance, or nil when the convention is absent.
type Strategy func(body string) []string

// Strategies is the default ordered strategy list. First non-empty result
// wins.
var Strategies = []Strategy{
	literalStrings,
	hexStrings,
}

// Extract decodes the byte buffer permissively (invalid UTF-8 is replaced,
// never rejected) and runs the strategy list over it. The collected blocks
// are joined with newlines. Extract never fails: a document with no
// extractable text layer simply yields "", which the caller treats as the
// signal to fall back to recognition.
func Extract(data []byte) string {
	body := strings.ToValidUTF8(string(data), "�")

	for _, strat := range Strategies {
		if blocks := strat(body); len(blocks) > 0 {
			return strings.Join(blocks, "\n")
		}
	}
	return ""
}

// literalStrings collects every span delimited by unescaped parentheses and
// unescapes the backslash sequences of the literal-string convention.
func literalStrings(body string) []string {
	var blocks []string

	for i := 0; i < len(body); i++ {
		if body[i] != '(' || escaped(body, i) {
			continue
		}
		end := -1
		for j := i + 1; j < len(body); j++ {
			if body[j] == ')' && !escaped(body, j) {
				end = j
				break
			}
		}
		if end < 0 {
			break
		}
		if s := unescapeLiteral(body[i+1 : end]); s != "" {
			blocks = append(blocks, s)
		}
		i = end
	}
	return blocks
}

// escaped reports whether the byte at pos is preceded by an odd number of
// backslashes.
func escaped(body string, pos int) bool {
	n := 0
	for j := pos - 1; j >= 0 && body[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func unescapeLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\', '(', ')':
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// hexStrings collects every angle-bracketed run of hex digits and decodes
// the even-length runs pairwise: printable ASCII survives, byte 10 becomes a
// line break, byte 32 a space, everything else is dropped.
func hexStrings(body string) []string {
	var blocks []string

	for i := 0; i < len(body); i++ {
		if body[i] != '<' {
			continue
		}
		end := strings.IndexByte(body[i+1:], '>')
		if end < 0 {
			break
		}
		run := body[i+1 : i+1+end]
		i += end + 1

		if run == "" || len(run)%2 != 0 || !isHex(run) {
			continue
		}
		raw, err := hex.DecodeString(run)
		if err != nil {
			continue
		}
		if s := printableASCII(raw); s != "" {
			blocks = append(blocks, s)
		}
	}
	return blocks
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func printableASCII(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		switch {
		case c == 10:
			b.WriteByte('\n')
		case c == 32:
			b.WriteByte(' ')
		case c >= 32 && c <= 126:
			b.WriteByte(c)
		}
	}
	return b.String()
}
