package calendar

import (
	"sort"
	"time"

	"github.com/davebream/rpswatch/internal/model"
)

// Block is one merged interval of use. Offset and Width are fractions of
// the window.
type Block struct {
	Start  time.Time
	End    time.Time
	Offset float64
	Width  float64
}

// Row is one identity's use within a window.
type Row struct {
	Identity string
	Total    time.Duration
	Blocks   []Block
}

type interval struct {
	start, end time.Time
}

// Project clips sessions to w, merges overlapping or touching intervals per
// identity, and returns one row per identity ordered by first use. Open
// sessions run until now. Sessions flagged non-shared or without a valid
// loginAt are skipped.
func Project(sessions []model.Session, w Window, now time.Time) []Row {
	byIdentity := map[string][]interval{}
	var order []string

	for i := range sessions {
		s := &sessions[i]
		if !s.CountsAsRps() {
			continue
		}
		login, ok := model.ParseTime(s.LoginAt)
		if !ok {
			continue
		}
		end := now
		if s.LogoutAt != "" {
			if logout, ok := model.ParseTime(s.LogoutAt); ok {
				end = logout
			}
		}
		iv := interval{start: maxTime(login, w.Start), end: minTime(end, w.End)}
		if !iv.end.After(iv.start) {
			continue
		}
		key := s.Label()
		if _, seen := byIdentity[key]; !seen {
			order = append(order, key)
		}
		byIdentity[key] = append(byIdentity[key], iv)
	}

	rows := make([]Row, 0, len(order))
	for _, key := range order {
		merged := merge(byIdentity[key])
		row := Row{Identity: key}
		for _, iv := range merged {
			row.Total += iv.end.Sub(iv.start)
			row.Blocks = append(row.Blocks, Block{
				Start:  iv.start,
				End:    iv.end,
				Offset: w.Offset(iv.start),
				Width:  w.Offset(iv.end) - w.Offset(iv.start),
			})
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Blocks[0].Start.Before(rows[j].Blocks[0].Start)
	})
	return rows
}

func merge(ivs []interval) []interval {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].start.Before(ivs[j].start) })
	var out []interval
	for _, iv := range ivs {
		if n := len(out); n > 0 && !iv.start.After(out[n-1].end) {
			out[n-1].end = maxTime(out[n-1].end, iv.end)
			continue
		}
		out = append(out, iv)
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
