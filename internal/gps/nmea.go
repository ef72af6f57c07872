package gps

import (
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/watch_companion/internal/geo"
)

// ParseSentence parses one NMEA line. Only valid RMC sentences with a
// complete date and time produce a fix; other well-formed sentences return
// ok=false with no error.
func ParseSentence(line string) (fix geo.Fix, ok bool, err error) {
	line = strings.TrimSpace(line)
	// NMEA sentences usually start with '$'
	if line == "" || !strings.HasPrefix(line, "$") {
		return geo.Fix{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return geo.Fix{}, false, err
	}

	if sentence.DataType() != nmea.TypeRMC {
		return geo.Fix{}, false, nil
	}
	m := sentence.(nmea.RMC)

	if m.Validity != nmea.ValidRMC || !m.Date.Valid || !m.Time.Valid {
		return geo.Fix{}, false, nil
	}

	ts := time.Date(
		2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
		m.Time.Hour, m.Time.Minute, m.Time.Second, m.Time.Millisecond*int(time.Millisecond),
		time.UTC,
	)
	return geo.NewFix(m.Latitude, m.Longitude, ts), true, nil
}
