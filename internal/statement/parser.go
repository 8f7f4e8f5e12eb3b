package statement

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseOptions injects the ambient defaults the parser needs. The statement
// prints DD/MM dates without a year, so when no PERIODE marker is found the
// year (and January as month) come from Now. Injecting the clock keeps Parse
// deterministic and testable.
type ParseOptions struct {
	// Now supplies the reference time for the default period. Defaults to
	// time.Now when nil.
	Now func() time.Time

	// Currency is carried through to the result consumers unmodified; the
	// parser itself does not use it.
	Currency string
}

// Indonesian month vocabulary, index 0 = January.
var monthNames = []string{
	"JANUARI", "FEBRUARI", "MARET", "APRIL", "MEI", "JUNI",
	"JULI", "AGUSTUS", "SEPTEMBER", "OKTOBER", "NOVEMBER", "DESEMBER",
}

var (
	periodRe  = regexp.MustCompile(`PERIODE\s*:?\s*(` + strings.Join(monthNames, "|") + `)\s+(\d{4})`)
	openRe    = regexp.MustCompile(`SALDO\s+AWAL\s*:?\s*([\d.,]+)`)
	closeRe   = regexp.MustCompile(`SALDO\s+AKHIR\s*:?\s*([\d.,]+)`)
	dateLine  = regexp.MustCompile(`^(\d{2})/(\d{2})$`)
	amountRe  = regexp.MustCompile(`\d+(?:[.,]\d+)+`)
	refRe     = regexp.MustCompile(`\d{4}/\w+(?:/\w+)*`)
	creditRe  = regexp.MustCompile(`(?i)\bCR\b`)
)

// Header/footer fragments that show up between transactions on every page.
// A collected block containing any of these is page furniture, not a
// transaction.
var noiseTokens = []string{
	"TANGGAL", "KETERANGAN", "CABANG", "MUTASI", "SALDO", "Halaman", "Bersambung",
}

const (
	// maxBlockLines caps block collection so malformed input without date
	// boundaries cannot swallow the rest of the document.
	maxBlockLines = 50

	// Amount sanity window. Stray single digits (page numbers, column
	// indices) and absurd outliers are not transaction amounts.
	minAmount = 0
	maxAmount = 100_000_000_000
)

// scanState is the block scanner's explicit state.
type scanState int

const (
	stateSeekDate scanState = iota
	stateCollectBlock
)

// Parse reconstructs a structured statement from extracted plain text.
//
// The pre-scan locates the PERIODE marker and the opening/closing balance
// labels anywhere in the text. The main scan is a two-state machine over the
// non-empty lines: seek a strict DD/MM date line, then collect every
// following line into the block until the next date line or the line cap,
// validate the block, and emit a transaction.
//
// Parse never fails: unparseable blocks are skipped and a document with no
// recognizable transactions yields an empty Transactions slice, which the
// caller treats as a recoverable outcome.
func Parse(text string, opts ParseOptions) *ParsedStatement {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	st := &ParsedStatement{}

	year := now().Year()
	month := time.January
	if m := periodRe.FindStringSubmatch(text); m != nil {
		st.Period = m[1] + " " + m[2]
		if y, err := strconv.Atoi(m[2]); err == nil {
			year = y
		}
		month = monthByName(m[1])
	}
	st.StartDate = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	st.EndDate = st.StartDate.AddDate(0, 1, -1)

	if m := openRe.FindStringSubmatch(text); m != nil {
		st.OpeningBalance = NormalizeAmount(m[1])
	}
	if m := closeRe.FindStringSubmatch(text); m != nil {
		st.ClosingBalance = NormalizeAmount(m[1])
	}

	lines := splitLines(text)

	state := stateSeekDate
	var day, mon int
	var block []string

	i := 0
	for i <= len(lines) {
		switch state {
		case stateSeekDate:
			if i >= len(lines) {
				i++ // terminal
				continue
			}
			if d, m, ok := matchDateLine(lines[i]); ok {
				day, mon = d, m
				block = block[:0]
				state = stateCollectBlock
			}
			i++

		case stateCollectBlock:
			atEnd := i >= len(lines)
			if !atEnd {
				if _, _, next := matchDateLine(lines[i]); next {
					atEnd = true // next transaction's date, leave unconsumed
				}
			}
			if atEnd || len(block) >= maxBlockLines {
				emitBlock(st, year, mon, day, block)
				state = stateSeekDate
				if i >= len(lines) {
					i++ // terminal
				}
				continue
			}
			block = append(block, lines[i])
			i++
		}
	}

	return st
}

// emitBlock validates a collected block and appends a transaction when it
// qualifies. Rejected blocks are dropped silently; a bad block must never
// abort the whole document.
func emitBlock(st *ParsedStatement, year, month, day int, block []string) {
	desc := strings.TrimSpace(strings.Join(block, "\n"))
	if len(desc) < 3 {
		return
	}
	for _, tok := range noiseTokens {
		if strings.Contains(desc, tok) {
			return
		}
	}

	amounts := qualifyingAmounts(desc)
	if len(amounts) == 0 {
		return
	}

	tx := &Transaction{
		Date:        time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
		Description: desc,
		Reference:   refRe.FindString(desc),
	}

	// First qualifying token is the amount; when more than one is present
	// the last one is the printed running balance. Middle tokens (e.g. a
	// fee listed alongside the principal) are intentionally ignored.
	amount := amounts[0]
	if len(amounts) > 1 {
		bal := amounts[len(amounts)-1]
		tx.Balance = &bal
	}

	if creditRe.MatchString(desc) {
		tx.CreditAmount = amount
	} else {
		tx.DebitAmount = amount
	}

	st.Transactions = append(st.Transactions, tx)
}

// qualifyingAmounts normalizes every numeric token in the block and keeps
// the ones inside the sanity window, in order of appearance.
func qualifyingAmounts(desc string) []float64 {
	var out []float64
	for _, tok := range amountRe.FindAllString(desc, -1) {
		v := NormalizeAmount(tok)
		if v > minAmount && v < maxAmount {
			out = append(out, v)
		}
	}
	return out
}

// matchDateLine reports whether the line is exactly a DD/MM pair with a
// plausible day and month. Anything else, including pairs like 13/13 or
// 00/05, is noise between transactions.
func matchDateLine(line string) (day, month int, ok bool) {
	m := dateLine.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	d, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	if d < 1 || d > 31 || mo < 1 || mo > 12 {
		return 0, 0, false
	}
	return d, mo, true
}

// splitLines returns the non-empty trimmed lines of the text.
func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

func monthByName(name string) time.Month {
	for i, n := range monthNames {
		if n == name {
			return time.Month(i + 1)
		}
	}
	return time.January
}
