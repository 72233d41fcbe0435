package combine

import "errors"

// Sentinel errors classifying every fatal failure the pipeline can
// produce. Callers match with errors.Is; the concrete message carries
// the subject/session/category detail.
var (
	// ErrConfiguration marks bad user input: an unknown session in
	// --session-list, or an anatomical session override outside the
	// resolved session list.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataAbsent marks a dataset missing a required anatomical
	// modality (T1w or T2w) across the sessions being combined.
	ErrDataAbsent = errors.New("required data absent")

	// ErrMetadata marks a missing or unparsable JSON sidecar. A data
	// file without valid companion metadata is a fatal input error.
	ErrMetadata = errors.New("metadata error")

	// ErrIO marks an environment failure: copy, ownership change, or a
	// destination that already exists without --overwrite.
	ErrIO = errors.New("i/o error")
)
