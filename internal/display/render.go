// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/watch_companion/internal/activity"
)

const (
	Width  = 128
	Height = 64

	lineHeight = 13
)

// Snapshot is the watchface state mirrored on the panel.
type Snapshot struct {
	Time time.Time

	HaveSpeed bool
	Speed     float64 // m/s
	Driving   bool

	HaveActivity bool
	Activity     activity.Type
	Steps        uint32
}

// Lines returns the text rows shown for s, top to bottom.
func Lines(s Snapshot) []string {
	lines := []string{s.Time.Format("15:04 Mon 02")}

	if !s.HaveSpeed && !s.HaveActivity {
		return append(lines, "Waiting...")
	}

	if s.HaveSpeed {
		speed := fmt.Sprintf("%.1f m/s", s.Speed)
		if s.Driving {
			speed += " DRV"
		}
		lines = append(lines, speed)
	} else {
		lines = append(lines, "-- m/s")
	}

	if s.HaveActivity {
		lines = append(lines,
			fmt.Sprintf("Steps: %d", s.Steps),
			"Now: "+s.Activity.String(),
		)
	}
	return lines
}

// Render draws s on a blank frame.
func Render(s Snapshot) *image1bit.VerticalLSB {
	return renderText(Lines(s), 0)
}

// Splash is shown while the first data arrives.
func Splash() *image1bit.VerticalLSB {
	return renderText([]string{"Watch", "Companion", "starting"}, 10)
}

func renderText(lines []string, x int) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(x, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}
