package nlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	inHoursRe   = regexp.MustCompile(`em (\d+) horas?`)
	inMinutesRe = regexp.MustCompile(`em (\d+) minutos?`)
	atClockRe   = regexp.MustCompile(`\b(?:as\s+)?(\d{1,2})(?::(\d{2}))?\s*h(?:oras)?\b`)
)

// ParseWhen interprets Portuguese relative time expressions for reminders.
// Returns the zero time when nothing recognizable is present.
func ParseWhen(text string, now time.Time) time.Time {
	normalized := Normalize(text)

	if m := inHoursRe.FindStringSubmatch(normalized); m != nil {
		hours, _ := strconv.Atoi(m[1])
		return now.Add(time.Duration(hours) * time.Hour)
	}
	if m := inMinutesRe.FindStringSubmatch(normalized); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		return now.Add(time.Duration(minutes) * time.Minute)
	}

	day := now
	explicitDay := false
	switch {
	case strings.Contains(normalized, "amanha"):
		day = now.AddDate(0, 0, 1)
		explicitDay = true
	case strings.Contains(normalized, "proxima semana"):
		day = now.AddDate(0, 0, 7)
		explicitDay = true
	case strings.Contains(normalized, "proximo mes"):
		day = now.AddDate(0, 1, 0)
		explicitDay = true
	case strings.Contains(normalized, "hoje"):
		explicitDay = true
	}

	if m := atClockRe.FindStringSubmatch(normalized); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59 {
			at := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
			if !explicitDay && !at.After(now) {
				at = at.AddDate(0, 0, 1)
			}
			return at
		}
	}

	if explicitDay {
		return day
	}
	return time.Time{}
}
