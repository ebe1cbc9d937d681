// Copyright 2021 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

//go:build !snmpsession_nodebug

package snmpsession

func (l *Logger) Print(v ...any) {
	if l.logger != nil {
		l.logger.Print(v...)
	}
}

func (l *Logger) Printf(format string, v ...any) {
	if l.logger != nil {
		l.logger.Printf(format, v...)
	}
}

// Enabled reports whether a LoggerInterface is set. Session checks it
// before rendering packets with SafeString for trace output.
func (l *Logger) Enabled() bool {
	return l.logger != nil
}
