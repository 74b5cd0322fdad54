package pattern

import (
	"fmt"
	"sort"
	"time"
)

// sessionBreak is the gap above which consecutive events are treated as
// separate sessions; the gap is excluded from time-on-page averages so
// abandoned tabs don't skew them.
const sessionBreak = 300 * time.Second

// Transition is an ordered page→page movement with its occurrence count.
type Transition struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// FrictionPoint is a component+page pair with repeated negative signals.
type FrictionPoint struct {
	Component string `json:"component"`
	Page      string `json:"page"`
	Count     int    `json:"count"`
}

// SuccessSignal is an action+page pair with positive outcomes.
type SuccessSignal struct {
	Action string `json:"action"`
	Page   string `json:"page"`
	Count  int    `json:"count"`
}

// UserPattern is the behavioral digest for one user over one run's window.
type UserPattern struct {
	TotalEvents    int
	PageVisitRates map[string]float64 // page → visits / total page views
	PageVisits     map[string]int
	Transitions    []Transition    // ordered by count descending
	FrictionPoints []FrictionPoint // ordered by count descending
	SuccessSignals []SuccessSignal // ordered by count descending
	AvgTimeOnPage  time.Duration
}

// Extract computes a UserPattern from raw events.
// Fewer than MinEvents events aborts with ErrInsufficientSignal.
func Extract(events []Event) (*UserPattern, error) {
	if len(events) < MinEvents {
		return nil, fmt.Errorf("%w: %d events, need %d", ErrInsufficientSignal, len(events), MinEvents)
	}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	up := &UserPattern{
		TotalEvents:    len(sorted),
		PageVisitRates: make(map[string]float64),
		PageVisits:     make(map[string]int),
	}

	transitions := make(map[[2]string]int)
	friction := make(map[[2]string]int)
	success := make(map[[2]string]int)

	var (
		prevPage     string
		prevPageAt   time.Time
		totalOnPage  time.Duration
		countedGaps  int
		totalVisits  int
	)

	for _, ev := range sorted {
		switch ev.Type {
		case EventPageView:
			totalVisits++
			up.PageVisits[ev.Page]++
			if prevPage != "" && prevPage != ev.Page {
				transitions[[2]string{prevPage, ev.Page}]++
			}
			if prevPage != "" {
				gap := ev.Timestamp.Sub(prevPageAt)
				if gap > 0 && gap <= sessionBreak {
					totalOnPage += gap
					countedGaps++
				}
			}
			prevPage = ev.Page
			prevPageAt = ev.Timestamp
		case EventError, EventFriction:
			friction[[2]string{ev.Component, ev.Page}]++
		case EventSuccess:
			success[[2]string{ev.Action, ev.Page}]++
		}
	}

	if totalVisits > 0 {
		for page, n := range up.PageVisits {
			up.PageVisitRates[page] = float64(n) / float64(totalVisits)
		}
	}
	if countedGaps > 0 {
		up.AvgTimeOnPage = totalOnPage / time.Duration(countedGaps)
	}

	for key, n := range transitions {
		up.Transitions = append(up.Transitions, Transition{From: key[0], To: key[1], Count: n})
	}
	sortByCount(up.Transitions, func(t Transition) int { return t.Count }, func(t Transition) string { return t.From + "→" + t.To })

	for key, n := range friction {
		up.FrictionPoints = append(up.FrictionPoints, FrictionPoint{Component: key[0], Page: key[1], Count: n})
	}
	sortByCount(up.FrictionPoints, func(f FrictionPoint) int { return f.Count }, func(f FrictionPoint) string { return f.Component + "@" + f.Page })

	for key, n := range success {
		up.SuccessSignals = append(up.SuccessSignals, SuccessSignal{Action: key[0], Page: key[1], Count: n})
	}
	sortByCount(up.SuccessSignals, func(s SuccessSignal) int { return s.Count }, func(s SuccessSignal) string { return s.Action + "@" + s.Page })

	return up, nil
}

// sortByCount orders by count descending with a stable key tiebreak so
// extraction is deterministic across runs.
func sortByCount[T any](items []T, count func(T) int, key func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := count(items[i]), count(items[j])
		if ci != cj {
			return ci > cj
		}
		return key(items[i]) < key(items[j])
	})
}
