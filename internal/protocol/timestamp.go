package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Timestamp is a point in time encoded as fractional Unix seconds.
type Timestamp time.Time

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Time returns the timestamp as a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// Seconds returns the timestamp as fractional Unix seconds.
func (t Timestamp) Seconds() float64 {
	return float64(time.Time(t).UnixMilli()) / 1000
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(t.Seconds(), 'f', 3, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("timestamp must be a number of seconds: %w", err)
	}
	whole, frac := math.Modf(secs)
	*t = Timestamp(time.Unix(int64(whole), int64(math.Round(frac*1000))*int64(time.Millisecond)))
	return nil
}
