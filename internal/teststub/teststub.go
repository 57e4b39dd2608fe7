// SPDX-License-Identifier: GPL-3.0-or-later

// Package teststub provides a function-field fake for [io.Closer]: a struct
// with one func field per interface method, a nil field making the method a
// no-op that returns nil (see DESIGN.md).
package teststub

import "io"

// FuncCloser adapts function fields to [io.Closer].
type FuncCloser struct {
	CloseFunc func() error
}

// Close implements [io.Closer].
func (f *FuncCloser) Close() error {
	if f.CloseFunc != nil {
		return f.CloseFunc()
	}
	return nil
}

var _ io.Closer = &FuncCloser{}
