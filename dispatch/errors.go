// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dispatch

import "github.com/born-ml/accel/internal/errs"

// Error is the error type of every failed call. Its Kind tells whether the
// inputs were invalid, a device failed, or the computation failed everywhere.
type Error = errs.Error

// ErrorKind classifies an Error.
type ErrorKind = errs.Kind

// Error kinds.
const (
	KindShape   ErrorKind = errs.KindShape
	KindDevice  ErrorKind = errs.KindDevice
	KindCompute ErrorKind = errs.KindCompute
)

// Sentinels for errors.Is.
var (
	ErrShape   = errs.ErrShape
	ErrDevice  = errs.ErrDevice
	ErrCompute = errs.ErrCompute
)

// IsShape reports whether err is an invalid-input error.
func IsShape(err error) bool { return errs.IsShape(err) }

// IsDevice reports whether err is a device failure.
func IsDevice(err error) bool { return errs.IsDevice(err) }

// IsCompute reports whether err is a failure on every tried backend.
func IsCompute(err error) bool { return errs.IsCompute(err) }
