// Copyright 2026 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package logging builds the zap loggers used by the commands.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lukeod/snmpsession"
)

// New returns a configured zap.Logger based on log level string.
// Use "debug", "info", "warn", "error" (case-insensitive).
// Logs go to stderr so that command output on stdout stays clean.
func New(level string) *zap.SugaredLogger {
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(level)),
		Development:      false,
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}

	logger, err := config.Build()
	if err != nil {
		panic("cannot initialize logger: " + err.Error())
	}

	return logger.Sugar()
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Printer adapts a sugared logger to snmpsession.LoggerInterface. The
// library logs at protocol trace granularity, so everything goes to debug.
type Printer struct {
	*zap.SugaredLogger
}

func (p Printer) Print(v ...any) {
	p.Debug(fmt.Sprint(v...))
}

func (p Printer) Printf(format string, v ...any) {
	p.Debugf(format, v...)
}

// SessionLogger returns a snmpsession.Logger backed by l, or a silent one
// unless l has debug enabled.
func SessionLogger(l *zap.SugaredLogger) snmpsession.Logger {
	if l == nil || !l.Desugar().Core().Enabled(zap.DebugLevel) {
		return snmpsession.Logger{}
	}
	return snmpsession.NewLogger(Printer{l})
}
