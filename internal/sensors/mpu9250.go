// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/watch_companion/internal/imu"
)

// accelLSBPerG is the MPU9250 accelerometer scale at the power-on ±2g range.
const accelLSBPerG = 16384

// MPU9250 reads the accelerometer of an MPU9250 wired over SPI.
type MPU9250 struct {
	dev *mpu9250.MPU9250
}

// NewMPU9250 initializes the sensor on spiDev with chip select csPin.
func NewMPU9250(spiDev, csPin string) (*MPU9250, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("accel: periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("accel: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("accel: SPI transport (%s): %w", spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("accel: device creation: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("accel: initialization: %w", err)
	}

	if err := dev.Calibrate(); err != nil {
		log.WithError(err).Warn("accel: calibration failed")
	} else {
		log.Info("accel: calibration complete")
	}

	log.WithFields(log.Fields{"spi": spiDev, "cs": csPin}).Info("accel: MPU9250 ready")
	return &MPU9250{dev: dev}, nil
}

// ReadAccel returns one sample in milli-g.
func (s *MPU9250) ReadAccel() (imu.AccelSample, error) {
	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return imu.AccelSample{}, fmt.Errorf("accel X: %w", err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return imu.AccelSample{}, fmt.Errorf("accel Y: %w", err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return imu.AccelSample{}, fmt.Errorf("accel Z: %w", err)
	}

	return imu.AccelSample{
		X: RawToMilliG(ax),
		Y: RawToMilliG(ay),
		Z: RawToMilliG(az),
	}, nil
}

// RawToMilliG converts a raw ±2g reading to milli-g.
func RawToMilliG(raw int16) int16 {
	return int16(int32(raw) * 1000 / accelLSBPerG)
}
