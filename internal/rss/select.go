package rss

import (
	"time"

	"github.com/deusflow/inkpost/internal/newsletter"
)

// Policy is the part of a newsletter that decides which entries are due.
type Policy struct {
	Periodicity newsletter.Periodicity
	Weekdays    newsletter.Weekdays
	MaxPosts    int
}

func PolicyFor(nl newsletter.Newsletter) Policy {
	return Policy{
		Periodicity: nl.Periodicity,
		Weekdays:    nl.Weekdays,
		MaxPosts:    nl.MaxPosts,
	}
}

// SelectDue returns the entries due on today under policy, deduplicated by
// identity and capped at MaxPosts. Dates are compared in today's location.
func SelectDue(entries []Entry, policy Policy, today time.Time) []Entry {
	var due []Entry
	switch policy.Periodicity {
	case newsletter.Daily:
		due = selectDaily(entries, policy.Weekdays, today)
	case newsletter.Weekly:
		due = selectWeekly(entries, policy.Weekdays, today)
	default:
		due = selectLast(entries)
	}
	return Limit(Dedupe(due), policy.MaxPosts)
}

// selectLast picks the newest entry; ties go to the smallest identity.
func selectLast(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Published.After(best.Published) ||
			(e.Published.Equal(best.Published) && e.ID < best.ID) {
			best = e
		}
	}
	return []Entry{best}
}

func selectDaily(entries []Entry, days newsletter.Weekdays, today time.Time) []Entry {
	if !days.Empty() && !days.Contains(today.Weekday()) {
		return nil
	}
	var out []Entry
	for _, e := range entries {
		if e.Published.IsZero() {
			continue
		}
		if sameDate(e.Published.In(today.Location()), today) {
			out = append(out, e)
		}
	}
	return out
}

func selectWeekly(entries []Entry, days newsletter.Weekdays, today time.Time) []Entry {
	start := startOfWeek(today)
	end := start.AddDate(0, 0, 7)

	var out []Entry
	for _, e := range entries {
		if e.Published.IsZero() {
			continue
		}
		published := e.Published.In(today.Location())
		if published.Before(start) || !published.Before(end) {
			continue
		}
		if !days.Empty() && !days.Contains(published.Weekday()) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// startOfWeek returns midnight of the Sunday that opens t's week.
func startOfWeek(t time.Time) time.Time {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -int(t.Weekday()))
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Dedupe keeps the first entry for every identity.
func Dedupe(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Limit keeps at most n entries. n <= 0 yields nothing.
func Limit(entries []Entry, n int) []Entry {
	if n <= 0 {
		return []Entry{}
	}
	if len(entries) > n {
		return entries[:n]
	}
	return entries
}
