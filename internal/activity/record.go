package activity

import (
	"encoding/binary"
	"fmt"
)

// RecordSize is the encoded length of a Record.
const RecordSize = 6 * 4

// Record is one data log entry: the activity totals accrued over a log
// interval and the Unix second it closed at.
type Record struct {
	SleepTime uint32 `json:"sleep_time"`
	SitTime   uint32 `json:"sit_time"`
	WalkTime  uint32 `json:"walk_time"`
	JogTime   uint32 `json:"jog_time"`
	Steps     uint32 `json:"steps"`
	Timestamp uint32 `json:"timestamp"`
}

// MarshalBinary encodes r as six little-endian uint32 fields.
func (r Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	for i, v := range r.fields() {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf, nil
}

// UnmarshalBinary decodes the layout written by MarshalBinary.
func (r *Record) UnmarshalBinary(b []byte) error {
	if len(b) != RecordSize {
		return fmt.Errorf("activity: record is %d bytes, want %d", len(b), RecordSize)
	}
	*r = Record{
		SleepTime: binary.LittleEndian.Uint32(b[0:4]),
		SitTime:   binary.LittleEndian.Uint32(b[4:8]),
		WalkTime:  binary.LittleEndian.Uint32(b[8:12]),
		JogTime:   binary.LittleEndian.Uint32(b[12:16]),
		Steps:     binary.LittleEndian.Uint32(b[16:20]),
		Timestamp: binary.LittleEndian.Uint32(b[20:24]),
	}
	return nil
}

// UnmarshalRecord decodes a single record.
func UnmarshalRecord(b []byte) (Record, error) {
	var r Record
	err := r.UnmarshalBinary(b)
	return r, err
}

func (r Record) fields() [6]uint32 {
	return [6]uint32{r.SleepTime, r.SitTime, r.WalkTime, r.JogTime, r.Steps, r.Timestamp}
}
