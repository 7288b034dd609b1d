package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/askdb/askdb/pkg/retrieval"
)

// monthStems maps a token prefix to its month number. Russian entries are stems so
// inflected forms ("сентября", "сентябре") match.
var monthStems = []struct {
	prefix string
	month  int
}{
	{"январ", 1}, {"феврал", 2}, {"март", 3}, {"апрел", 4},
	{"июн", 6}, {"июл", 7}, {"август", 8}, {"сентябр", 9},
	{"октябр", 10}, {"ноябр", 11}, {"декабр", 12},
	{"january", 1}, {"february", 2}, {"march", 3}, {"april", 4},
	{"june", 6}, {"july", 7}, {"august", 8}, {"september", 9},
	{"october", 10}, {"november", 11}, {"december", 12},
}

// mayForms are matched exactly; a two-letter stem would hit unrelated words.
var mayForms = map[string]bool{
	"май": true, "мая": true, "мае": true, "маю": true, "маем": true, "may": true,
}

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// DetectMonthYear finds the first month name and the first 20xx year in text.
func DetectMonthYear(text string) (year, month int, ok bool) {
	month = monthFromTokens(retrieval.Tokenize(text))
	if month == 0 {
		return 0, 0, false
	}
	m := yearPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	return year, month, true
}

func monthFromTokens(tokens []string) int {
	for _, tok := range tokens {
		if mayForms[tok] {
			return 5
		}
		for _, stem := range monthStems {
			if strings.HasPrefix(tok, stem.prefix) {
				return stem.month
			}
		}
	}
	return 0
}

// MonthRange returns the half-open [first of month, first of next month) bounds as
// YYYY-MM-DD literals. December rolls over to January of the next year.
func MonthRange(year, month int) (start, end string) {
	nextYear, nextMonth := year, month+1
	if month == 12 {
		nextYear, nextMonth = year+1, 1
	}
	return fmt.Sprintf("%04d-%02d-01", year, month), fmt.Sprintf("%04d-%02d-01", nextYear, nextMonth)
}
