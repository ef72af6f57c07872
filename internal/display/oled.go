// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// OLED is an SSD1306 panel at its fixed address 0x3C on the default I2C bus.
type OLED struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
}

// OpenOLED initializes periph, opens the bus and the panel.
func OpenOLED() (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("display: periph init: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("display: open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("display: init panel: %w", err)
	}
	log.Info("display: panel initialized")

	return &OLED{bus: bus, dev: dev}, nil
}

// Show pushes a full frame.
func (o *OLED) Show(img image.Image) error {
	return o.dev.Draw(o.dev.Bounds(), img, image.Point{})
}

// Close blanks the panel and releases the bus.
func (o *OLED) Close() error {
	if err := o.dev.Halt(); err != nil {
		log.WithError(err).Warn("display: halt")
	}
	return o.bus.Close()
}
