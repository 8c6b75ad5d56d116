package relay

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FaultWordCount is the fixed size of one fault block in the relay's
// holding-register map.
const FaultWordCount = 15

// FaultRecord is one decoded relay fault event. It is immutable once
// decoded. TimestampValid distinguishes "fault with an undecodable date"
// from a real timestamp; the remaining calendar oddities of the IEC 870
// encoding (day of week, season, date-validity bit) are not representable
// in time.Time and are kept as separate fields.
type FaultRecord struct {
	FaultNumber int

	Timestamp      time.Time
	TimestampValid bool

	Year            int // 0 when the year bytes matched neither encoding
	Month           int
	Day             int
	DayOfWeek       int
	Season          int
	Hour            int
	Minute          int
	DateValidity    int
	Seconds         int
	Microseconds    int
	MillisecondsRaw int

	IgnoredWord        int
	ActiveGroup        int
	InvolvedPhasesType int
	FaultType          int
	Amplitude          int
	CurrentPhaseA      int
	CurrentPhaseB      int
	CurrentPhaseC      int
	EarthCurrent       int
	Recognized         bool
}

// Decode turns a 15-word fault block into a FaultRecord. It fails only on a
// wrong word count; out-of-range date fields are logged and degrade to
// TimestampValid=false, never to an error, so one garbled block cannot stop
// a scan.
//
// The date layout follows the relay's IEC 870 register map:
//
//	word 1: year, split across both bytes (19xx in the high byte, 20xx in
//	        the low byte with bit 7 masked off)
//	word 2: month (high byte & 0x0F), day of week (low byte bits 5-7),
//	        day of month (low byte bits 0-4)
//	word 3: season (high bit 7), hour (high bits 0-4),
//	        date validity (low bit 7), minute (low bits 0-5)
//	word 4: milliseconds of the current minute, 0..59999
func Decode(words []uint16, log *zap.SugaredLogger) (*FaultRecord, error) {
	if len(words) != FaultWordCount {
		return nil, fmt.Errorf("fault block: expected %d registers, got %d", FaultWordCount, len(words))
	}

	rec := &FaultRecord{FaultNumber: int(words[0])}

	yearHi := int(words[1]>>8) & 0xFF
	yearLo := int(words[1]) & 0xFF
	switch {
	case yearHi >= 94 && yearHi <= 99:
		rec.Year = 1900 + yearHi
	case yearLo&0x7F <= 93:
		rec.Year = 2000 + (yearLo & 0x7F)
	default:
		log.Warnf("fault %d: unrecognized year encoding in word %#04x (hi=%d lo=%d)", rec.FaultNumber, words[1], yearHi, yearLo)
	}

	rec.Month = int(words[2]>>8) & 0x0F
	dayByte := int(words[2]) & 0xFF
	rec.DayOfWeek = (dayByte & 0xE0) >> 5
	rec.Day = dayByte & 0x1F

	hourByte := int(words[3]>>8) & 0xFF
	rec.Season = (hourByte & 0x80) >> 7
	rec.Hour = hourByte & 0x1F
	minuteByte := int(words[3]) & 0xFF
	rec.DateValidity = (minuteByte & 0x80) >> 7
	rec.Minute = minuteByte & 0x3F

	rec.MillisecondsRaw = int(words[4])
	rec.Seconds = rec.MillisecondsRaw / 1000
	rec.Microseconds = (rec.MillisecondsRaw % 1000) * 1000

	valid := true
	check := func(ok bool, field string, v int) {
		if !ok {
			log.Warnf("fault %d: %s out of range: %d", rec.FaultNumber, field, v)
			valid = false
		}
	}
	if rec.Year == 0 {
		valid = false
	} else {
		check(rec.Year >= 1994 && rec.Year <= 2093, "year", rec.Year)
	}
	check(rec.Month >= 1 && rec.Month <= 12, "month", rec.Month)
	check(rec.Day >= 1 && rec.Day <= 31, "day", rec.Day)
	check(rec.DayOfWeek >= 1 && rec.DayOfWeek <= 7, "day of week", rec.DayOfWeek)
	check(rec.Season == 0 || rec.Season == 1, "season", rec.Season)
	check(rec.Hour <= 23, "hour", rec.Hour)
	check(rec.Minute <= 59, "minute", rec.Minute)
	check(rec.DateValidity == 0 || rec.DateValidity == 1, "date validity", rec.DateValidity)
	check(rec.Seconds <= 59, "seconds", rec.Seconds)
	check(rec.Microseconds <= 999999, "microseconds", rec.Microseconds)

	if valid {
		ts := time.Date(rec.Year, time.Month(rec.Month), rec.Day, rec.Hour, rec.Minute, rec.Seconds, rec.Microseconds*1000, time.Local)
		// time.Date normalizes impossible dates (Feb 30 becomes Mar 1/2);
		// such records carry no usable timestamp.
		if ts.Year() == rec.Year && ts.Month() == time.Month(rec.Month) && ts.Day() == rec.Day {
			rec.Timestamp = ts
			rec.TimestampValid = true
		} else {
			log.Warnf("fault %d: calendar date %d-%02d-%02d does not exist", rec.FaultNumber, rec.Year, rec.Month, rec.Day)
		}
	}

	rec.IgnoredWord = int(words[5])
	rec.ActiveGroup = int(words[6])
	rec.InvolvedPhasesType = int(words[7])
	rec.FaultType = int(words[8])
	rec.Amplitude = int(words[9])
	rec.CurrentPhaseA = int(words[10])
	rec.CurrentPhaseB = int(words[11])
	rec.CurrentPhaseC = int(words[12])
	rec.EarthCurrent = int(words[13])
	rec.Recognized = words[14] != 0

	return rec, nil
}

// ISOTimestamp returns the fault datetime in ISO-8601 with microsecond
// precision, or nil when the record carries no usable timestamp. This is the
// representation stored with the fault row and used for deduplication.
func (r *FaultRecord) ISOTimestamp() *string {
	if !r.TimestampValid {
		return nil
	}
	s := r.Timestamp.Format("2006-01-02T15:04:05.000000")
	return &s
}
