package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davebream/rpswatch/internal/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func session(user, login, logout string) model.Session {
	return model.Session{UserID: strings.ToLower(user), DisplayName: user, LoginAt: login, LogoutAt: logout}
}

func TestWindowContaining(t *testing.T) {
	tests := []struct {
		name      string
		t         time.Time
		wantStart time.Time
	}{
		{"before anchor", at(9, 0), time.Date(2025, 3, 9, 17, 0, 0, 0, time.UTC)},
		{"at anchor", at(17, 0), at(17, 0)},
		{"after anchor", at(23, 30), at(17, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WindowContaining(tt.t, DefaultStartHour)
			assert.Equal(t, tt.wantStart, w.Start)
			assert.Equal(t, 24*time.Hour, w.Duration())
			assert.True(t, w.Contains(tt.t))
		})
	}
}

func TestWindowEndingOn(t *testing.T) {
	w := WindowEndingOn(at(3, 0), DefaultStartHour)
	assert.Equal(t, time.Date(2025, 3, 9, 17, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, at(17, 0), w.End)
	assert.Equal(t, "Mar 9, 2025, 5:00pm - Mar 10, 2025, 5:00pm", w.Label())
}

func TestProjectMergesOverlaps(t *testing.T) {
	w := Window{Start: at(0, 0), End: at(0, 0).Add(24 * time.Hour)}
	rows := Project([]model.Session{
		session("Ana", "2025-03-10T10:00:00.000Z", "2025-03-10T10:30:00.000Z"),
		session("Ana", "2025-03-10T10:25:00.000Z", "2025-03-10T11:00:00.000Z"),
	}, w, at(12, 0))

	require.Len(t, rows, 1)
	require.Len(t, rows[0].Blocks, 1)
	assert.Equal(t, at(10, 0), rows[0].Blocks[0].Start)
	assert.Equal(t, at(11, 0), rows[0].Blocks[0].End)
	assert.Equal(t, time.Hour, rows[0].Total)
	assert.InDelta(t, 10.0/24, rows[0].Blocks[0].Offset, 1e-9)
	assert.InDelta(t, 1.0/24, rows[0].Blocks[0].Width, 1e-9)
}

func TestProjectMergesAdjacent(t *testing.T) {
	w := Window{Start: at(0, 0), End: at(0, 0).Add(24 * time.Hour)}
	rows := Project([]model.Session{
		session("Ana", "2025-03-10T10:00:00.000Z", "2025-03-10T10:30:00.000Z"),
		session("Ana", "2025-03-10T10:30:00.000Z", "2025-03-10T10:45:00.000Z"),
	}, w, at(12, 0))
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Blocks, 1)
	assert.Equal(t, 45*time.Minute, rows[0].Total)
}

func TestProjectClipsOpenSession(t *testing.T) {
	w := WindowContaining(at(18, 30), DefaultStartHour)
	rows := Project([]model.Session{
		session("Ana", "2025-03-10T16:00:00.000Z", ""),
	}, w, at(18, 30))

	require.Len(t, rows, 1)
	require.Len(t, rows[0].Blocks, 1)
	assert.Equal(t, at(17, 0), rows[0].Blocks[0].Start)
	assert.Equal(t, at(18, 30), rows[0].Blocks[0].End)
	assert.Equal(t, "1h 30m", FormatTotal(rows[0].Total))
	assert.InDelta(t, 0, rows[0].Blocks[0].Offset, 1e-9)
}

func TestProjectSkipsAndKeys(t *testing.T) {
	w := Window{Start: at(0, 0), End: at(0, 0).Add(24 * time.Hour)}
	personal := false
	rows := Project([]model.Session{
		{DisplayName: "Ana", LoginAt: "2025-03-10T08:00:00.000Z", LogoutAt: "2025-03-10T09:00:00.000Z", IsRps: &personal},
		{DisplayName: "Ana", LoginAt: "garbage", LogoutAt: "2025-03-10T09:00:00.000Z"},
		{DisplayName: "Ana", LogoutAt: "2025-03-10T09:00:00.000Z"},
		{UserID: "u9", LoginAt: "2025-03-10T07:00:00.000Z", LogoutAt: "2025-03-10T07:10:00.000Z"},
		{LoginAt: "2025-03-10T06:00:00.000Z", LogoutAt: "2025-03-10T06:05:00.000Z"},
		{DisplayName: "Old", LoginAt: "2025-03-08T06:00:00.000Z", LogoutAt: "2025-03-08T07:00:00.000Z"},
	}, w, at(12, 0))

	var keys []string
	for _, r := range rows {
		keys = append(keys, r.Identity)
	}
	assert.Equal(t, []string{"Unknown", "u9"}, keys)
}

func TestZoomLadder(t *testing.T) {
	v := DefaultView()
	assert.Equal(t, ZoomLevel{PxPerHour: 48, TickMinutes: 60}, v.Level())
	assert.Equal(t, "1h", v.Level().Label())

	v = v.ZoomOut().ZoomOut().ZoomOut()
	assert.Equal(t, 0, v.ZoomIndex)
	assert.Equal(t, "180m", v.Level().Label())

	for range 10 {
		v = v.ZoomIn()
	}
	assert.Equal(t, len(ZoomLevels)-1, v.ZoomIndex)
	assert.Equal(t, 5, v.Level().TickMinutes)

	assert.Equal(t, ZoomLevels[0], ViewState{ZoomIndex: -4}.Level())
}

func TestTicks(t *testing.T) {
	hourly := Ticks(ZoomLevel{PxPerHour: 48, TickMinutes: 60}, DefaultStartHour)
	require.Len(t, hourly, 25)
	assert.Equal(t, "5:00pm", hourly[0].Label)
	assert.False(t, hourly[0].Day)
	assert.Equal(t, "12am", hourly[7].Label)
	assert.Equal(t, "6:00am", hourly[13].Label)
	assert.True(t, hourly[13].Day)
	assert.InDelta(t, 1.0, hourly[24].Offset, 1e-9)

	quarter := Ticks(ZoomLevel{PxPerHour: 120, TickMinutes: 15}, DefaultStartHour)
	assert.Equal(t, "5:00pm", quarter[0].Label)
	assert.Empty(t, quarter[1].Label)
	assert.Equal(t, "6:00pm", quarter[4].Label)
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "12am", FormatClock(0, 0))
	assert.Equal(t, "12pm", FormatClock(12, 0))
	assert.Equal(t, "9:05am", FormatClock(9, 5))
	assert.Equal(t, "12:30pm", FormatClock(12, 30))
	assert.Equal(t, "12:30am", FormatClock(0, 30))
	assert.Equal(t, "11:00pm", FormatClock(23, 0))
}

func TestFormatTotal(t *testing.T) {
	assert.Equal(t, "0m", FormatTotal(20*time.Second))
	assert.Equal(t, "59m", FormatTotal(59*time.Minute))
	assert.Equal(t, "1h 0m", FormatTotal(time.Hour))
	assert.Equal(t, "2h 5m", FormatTotal(125*time.Minute))
}

func TestRender(t *testing.T) {
	w := WindowContaining(at(18, 30), DefaultStartHour)
	rows := Project([]model.Session{session("Ana", "2025-03-10T17:30:00.000Z", "2025-03-10T18:00:00.000Z")}, w, at(18, 30))

	out := Render(rows, w, DefaultView(), DefaultStartHour)
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "30m")
	assert.Contains(t, out, "█")
	assert.Contains(t, out, "5:00pm")

	empty := Render(nil, w, DefaultView(), DefaultStartHour)
	assert.Contains(t, empty, "No one has used")
}
