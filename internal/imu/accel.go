package imu

// AccelSample is one accelerometer reading in milli-g, the unit the
// activity recognizer is tuned for (gravity reads about 1000).
type AccelSample struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// Source yields accelerometer samples on demand.
type Source interface {
	ReadAccel() (AccelSample, error)
}

// Batch reads n samples from src. It stops at the first error and returns
// what was read so far together with the error.
func Batch(src Source, n int) ([]AccelSample, error) {
	out := make([]AccelSample, 0, n)
	for i := 0; i < n; i++ {
		s, err := src.ReadAccel()
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
