// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the console level and the optional rotating log file.
type Options struct {
	Level      string // DEBUG, INFO, WARN, ERROR
	FilePath   string // empty disables the file hook
	MaxAgeDays int
}

// ParseLevel maps a config level name to a logrus level, INFO by default.
func ParseLevel(name string) log.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Configure sets up the standard logrus logger: colored text on stdout and,
// when FilePath is set, every level mirrored into a lumberjack-rotated file.
// The returned closer flushes the file; it is a no-op without a file.
func Configure(opts Options) (io.Closer, error) {
	return configure(log.StandardLogger(), os.Stdout, opts)
}

func configure(logger *log.Logger, console io.Writer, opts Options) (io.Closer, error) {
	logger.SetLevel(ParseLevel(opts.Level))
	logger.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: false})
	logger.SetOutput(console)

	if opts.FilePath == "" {
		return nopCloser{}, nil
	}

	logDir := filepath.Dir(opts.FilePath)
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", logDir, err)
		}
	}

	lumberjackLogger := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    100,
		MaxBackups: 366,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
	hook := lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: lumberjackLogger,
		log.FatalLevel: lumberjackLogger,
		log.ErrorLevel: lumberjackLogger,
		log.WarnLevel:  lumberjackLogger,
		log.InfoLevel:  lumberjackLogger,
		log.DebugLevel: lumberjackLogger,
		log.TraceLevel: lumberjackLogger,
	}, fileFmt)

	logger.AddHook(hook)
	return lumberjackLogger, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
