package display

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/watch_companion/internal/activity"
)

var tuesday = time.Date(2026, 3, 17, 9, 35, 0, 0, time.UTC)

func TestLines(t *testing.T) {
	tests := map[string]struct {
		in   Snapshot
		want []string
	}{
		"no data": {
			in:   Snapshot{Time: tuesday},
			want: []string{"09:35 Tue 17", "Waiting..."},
		},
		"speed only": {
			in:   Snapshot{Time: tuesday, HaveSpeed: true, Speed: 12.345},
			want: []string{"09:35 Tue 17", "12.3 m/s"},
		},
		"driving with activity": {
			in: Snapshot{
				Time: tuesday, HaveSpeed: true, Speed: 20, Driving: true,
				HaveActivity: true, Activity: activity.Sit, Steps: 4200,
			},
			want: []string{"09:35 Tue 17", "20.0 m/s DRV", "Steps: 4200", "Now: sit"},
		},
		"activity only": {
			in:   Snapshot{Time: tuesday, HaveActivity: true, Activity: activity.Walk, Steps: 12},
			want: []string{"09:35 Tue 17", "-- m/s", "Steps: 12", "Now: walk"},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lines(tt.in))
		})
	}
}

func litInRows(img *image1bit.VerticalLSB, y0, y1 int) int {
	n := 0
	for y := y0; y < y1; y++ {
		for x := 0; x < Width; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRender(t *testing.T) {
	waiting := Render(Snapshot{Time: tuesday})
	assert.Equal(t, image.Rect(0, 0, Width, Height), waiting.Bounds())
	assert.Greater(t, litInRows(waiting, 0, lineHeight+3), 0)
	assert.Greater(t, litInRows(waiting, lineHeight+3, 2*lineHeight+3), 0)
	assert.Zero(t, litInRows(waiting, 2*lineHeight+3, Height))

	full := Render(Snapshot{
		Time: tuesday, HaveSpeed: true, Speed: 3.2,
		HaveActivity: true, Activity: activity.Jog, Steps: 9000,
	})
	assert.Greater(t, litInRows(full, 3*lineHeight+3, Height), 0)
	assert.NotEqual(t, waiting.Pix, full.Pix)
}

func TestSplash(t *testing.T) {
	img := Splash()
	assert.Greater(t, litInRows(img, 0, Height), 0)
}
