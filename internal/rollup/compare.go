package rollup

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Turkish)
)

func collateStrings(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

// CompareCodes orders hierarchy codes numerically where digit runs appear,
// so "KOS 10" sorts after "KOS 9". Non-digit runs use Turkish collation.
// Ties between numerically equal runs ("01" vs "1") break on raw length so
// the order stays total and deterministic.
func CompareCodes(a, b string) int {
	ar, br := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ar) && j < len(br) {
		ca, cb := ar[i], br[j]
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			ia, na := digitRun(ar, i)
			ib, nb := digitRun(br, j)
			if c := compareDigits(na, nb); c != 0 {
				return c
			}
			i, j = ia, ib
			continue
		}
		si, sj := textRun(ar, i), textRun(br, j)
		na, nb := string(ar[i:si]), string(br[j:sj])
		if na != nb {
			if c := collateStrings(na, nb); c != 0 {
				return c
			}
		}
		i, j = si, sj
	}
	switch {
	case i < len(ar):
		return 1
	case j < len(br):
		return -1
	}
	return 0
}

func digitRun(rs []rune, start int) (end int, run string) {
	end = start
	for end < len(rs) && unicode.IsDigit(rs[end]) {
		end++
	}
	return end, string(rs[start:end])
}

func textRun(rs []rune, start int) int {
	end := start
	for end < len(rs) && !unicode.IsDigit(rs[end]) {
		end++
	}
	return end
}

// compareDigits compares two digit runs as integers of arbitrary length.
// Anything that is not a clean digit run was already split off, so there is
// no parse error path; equal values compare by raw length.
func compareDigits(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return 0
}
