package xlsx

import (
	"math"
	"strings"
	"time"

	"github.com/tsawler/sheetkit/xlerr"
)

// MaxSerial is the serial of 9999-12-31, the last date a cell can hold.
const MaxSerial = 2958465

const msPerDay = 86400000

var (
	epoch1900      = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	epoch1900Early = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)
	epoch1904      = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// TimeToSerial converts the wall-clock reading of t to a date serial. In
// the 1900 system serials below 61 count from 1899-12-31, because the
// spreadsheet calendar contains a 29 February 1900 that never happened.
// The result is rounded to the millisecond.
func TimeToSerial(t time.Time, date1904 bool) (float64, error) {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	epoch := epoch1900
	if date1904 {
		epoch = epoch1904
	}
	ms := millisSince(epoch, wall)
	if !date1904 && ms < 61*msPerDay {
		ms = millisSince(epoch1900Early, wall)
	}
	if ms < 0 || ms >= (MaxSerial+1)*msPerDay {
		return 0, xlerr.Valuef("date serial", "%s is outside the date range", t.Format(time.RFC3339))
	}
	return float64(ms) / msPerDay, nil
}

func millisSince(epoch, t time.Time) int64 {
	secs := t.Unix() - epoch.Unix()
	return secs*1000 + int64(t.Nanosecond()+500000)/1000000
}

// SerialToTime converts a date serial to a UTC time, rounded to the
// millisecond.
func SerialToTime(serial float64, date1904 bool) (time.Time, error) {
	if math.IsNaN(serial) || serial < 0 || serial >= MaxSerial+1 {
		return time.Time{}, xlerr.Valuef("date serial", "%v is outside the date range", serial)
	}
	epoch := epoch1900
	switch {
	case date1904:
		epoch = epoch1904
	case serial < 61:
		epoch = epoch1900Early
	}
	ms := int64(math.Round(serial * msPerDay))
	days := ms / msPerDay
	rem := ms % msPerDay
	return epoch.AddDate(0, 0, int(days)).Add(time.Duration(rem) * time.Millisecond), nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// isoSerial converts the ISO 8601 text of a t="d" cell to a serial.
// Time-only values become fractions of a day.
func isoSerial(text string, date1904 bool) (float64, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "T") {
		text = text[1:]
	}
	if t, err := time.Parse("15:04:05.999999999", text); err == nil {
		frac := float64(t.Hour()*3600000+t.Minute()*60000+t.Second()*1000+t.Nanosecond()/1000000) / msPerDay
		return frac, nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return TimeToSerial(t, date1904)
		}
	}
	return 0, xlerr.Valuef("date serial", "%q is not an ISO 8601 date", text)
}
