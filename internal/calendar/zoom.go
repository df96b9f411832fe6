package calendar

import "fmt"

// ZoomLevel is one step of the timeline zoom ladder.
type ZoomLevel struct {
	PxPerHour   int
	TickMinutes int
}

var ZoomLevels = []ZoomLevel{
	{PxPerHour: 24, TickMinutes: 180},
	{PxPerHour: 48, TickMinutes: 60},
	{PxPerHour: 72, TickMinutes: 30},
	{PxPerHour: 120, TickMinutes: 15},
	{PxPerHour: 168, TickMinutes: 10},
	{PxPerHour: 240, TickMinutes: 5},
}

// DefaultZoomIndex selects hourly ticks.
const DefaultZoomIndex = 1

// ViewState is the caller-owned timeline view.
type ViewState struct {
	ZoomIndex int
}

func DefaultView() ViewState {
	return ViewState{ZoomIndex: DefaultZoomIndex}
}

func (v ViewState) Level() ZoomLevel {
	return ZoomLevels[clampZoom(v.ZoomIndex)]
}

func (v ViewState) ZoomIn() ViewState {
	return ViewState{ZoomIndex: clampZoom(v.ZoomIndex + 1)}
}

func (v ViewState) ZoomOut() ViewState {
	return ViewState{ZoomIndex: clampZoom(v.ZoomIndex - 1)}
}

// Label is the tick spacing shown next to the zoom controls: "1h" or "Nm".
func (l ZoomLevel) Label() string {
	if l.TickMinutes == 60 {
		return "1h"
	}
	return fmt.Sprintf("%dm", l.TickMinutes)
}

func clampZoom(i int) int {
	return min(max(i, 0), len(ZoomLevels)-1)
}

// Tick is an axis mark Minute minutes after the window start.
type Tick struct {
	Minute int
	Offset float64
	// Label is empty for unlabeled ticks.
	Label string
	// Day is true between 06:00 and 18:00 wall-clock.
	Day bool
}

// Ticks lays out the axis of a 24-hour window starting at startHour. Below
// hourly spacing only ticks on the hour carry a label.
func Ticks(level ZoomLevel, startHour int) []Tick {
	const total = 24 * 60
	var ticks []Tick
	for m := 0; m <= total; m += level.TickMinutes {
		hour := (startHour + m/60) % 24
		minute := m % 60
		t := Tick{
			Minute: m,
			Offset: float64(m) / total,
			Day:    hour >= 6 && hour < 18,
		}
		if level.TickMinutes >= 60 || minute == 0 {
			t.Label = FormatClock(hour, minute)
		}
		ticks = append(ticks, t)
	}
	return ticks
}
