// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import "time"

// Config holds common configuration for dataflow instantiation and runner
// construction.
//
// Pass this to [Instantiate] and runner constructors to pre-wire
// dependencies. All fields have sensible defaults set by [NewConfig].
type Config struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Logger receives structured span and lifecycle events.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// TimeNow returns the current wall-clock time, used as the physical
	// component of HLC timestamps and for recording/replay gap timing.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// DriftBound is the maximum amount a received [Timestamp] may lie in
	// the future of the local [HLC] before [HLC.UpdateWithTimestamp] fails.
	//
	// Set by [NewConfig] to 1 minute.
	DriftBound time.Duration

	// Codec encodes and decodes message payloads for cross-runtime
	// transport over the fabric.
	//
	// Set by [NewConfig] to a CBOR codec (see [NewCBORCodec]).
	Codec Codec
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		ErrClassifier: DefaultErrClassifier,
		Logger:        DefaultSLogger(),
		TimeNow:       time.Now,
		DriftBound:    time.Minute,
		Codec:         NewCBORCodec(),
	}
}
