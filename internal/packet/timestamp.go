package packet

import (
	"strconv"
	"time"
)

// ntpEpochOffset is the number of seconds between 1900-01-01 and 1970-01-01.
const ntpEpochOffset = 2208988800

// Timestamp is the 64-bit NTP stamp carried in the wire header.
type Timestamp struct {
	Seconds  uint32
	Fraction uint32
}

// TimestampFrom converts a wall clock time into an NTP stamp.
func TimestampFrom(t time.Time) Timestamp {
	secs := t.Unix() + ntpEpochOffset
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return Timestamp{Seconds: uint32(secs), Fraction: uint32(frac)}
}

// Time converts the stamp back to wall clock time.
func (ts Timestamp) Time() time.Time {
	nanos := (uint64(ts.Fraction) * uint64(time.Second)) >> 32
	return time.Unix(int64(ts.Seconds)-ntpEpochOffset, int64(nanos)).UTC()
}

// Float returns seconds since the NTP epoch with fractional part.
func (ts Timestamp) Float() float64 {
	return float64(ts.Seconds) + float64(ts.Fraction)/float64(1<<32)
}

func (ts Timestamp) String() string {
	return strconv.FormatFloat(ts.Float(), 'f', 6, 64)
}
