package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/text/width"

	"github.com/IshaanNene/NewsHarvest/internal/config"
)

var (
	// 2025年10月5日, 2025-10-05, 2025.10.5
	fullDatePattern = regexp.MustCompile(`(\d{4})\s*[-./年]\s*(\d{1,2})\s*[-./月]\s*(\d{1,2})\s*[日号]?`)
	// 10月5日, 10-5号
	monthDayPattern = regexp.MustCompile(`(\d{1,2})\s*[-./月]\s*(\d{1,2})\s*[日号]`)
)

// DateWindow is a parsed, inclusive target window.
type DateWindow struct {
	start    time.Time
	end      time.Time
	fallback string
}

// NewDateWindow parses w.
func NewDateWindow(w config.Window) (DateWindow, error) {
	start, end, err := w.Bounds()
	if err != nil {
		return DateWindow{}, err
	}
	if end.Before(start) {
		return DateWindow{}, fmt.Errorf("window end %s before start %s", w.End, w.Start)
	}
	return DateWindow{start: start, end: end, fallback: w.Fallback()}, nil
}

// Contains reports whether t falls inside the window.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.start) && !t.After(w.end)
}

// Fallback is the coarse date recorded when no exact day is found.
func (w DateWindow) Fallback() string {
	return w.fallback
}

// ExtractDate scans text for a publish date inside w and returns it as
// YYYY-MM-DD, or "" when nothing qualifies. Explicit year-month-day matches
// are tried before bare month-day ones; dates outside the window are
// skipped, never clamped. Full-width digits and separators are folded to
// ASCII first.
func ExtractDate(text string, w DateWindow) string {
	text = width.Narrow.String(text)
	full := fullDatePattern.FindAllStringSubmatchIndex(text, -1)
	for _, m := range full {
		if d, ok := w.match(text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]]); ok {
			return d
		}
	}

	years := []int{w.start.Year()}
	if w.end.Year() != w.start.Year() {
		years = append(years, w.end.Year())
	}
	for _, m := range monthDayPattern.FindAllStringSubmatchIndex(text, -1) {
		// A month-day inside an explicit date already had its year checked.
		if overlaps(m[0], m[1], full) {
			continue
		}
		for _, y := range years {
			if d, ok := w.match(strconv.Itoa(y), text[m[2]:m[3]], text[m[4]:m[5]]); ok {
				return d
			}
		}
	}
	return ""
}

func overlaps(start, end int, spans [][]int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

func (w DateWindow) match(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}

	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		// Normalized overflow such as 2月30日.
		return "", false
	}
	if !w.Contains(t) {
		return "", false
	}
	return t.Format(config.DateLayout), true
}
