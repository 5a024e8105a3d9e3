// Package shared holds the error taxonomy and small helpers used across the
// metadata store packages.
package shared

// Kind classifies a failure. Kind implements error so callers can match a
// class of failure with errors.Is(err, shared.Corrupt).
type Kind int

const (
	// IO is an underlying I/O failure. The cause is preserved.
	IO Kind = iota
	// NotInitialized means the hole holds no metadata header.
	NotInitialized
	// Unsupported means the volume type, layout or header version is not supported.
	Unsupported
	// Corrupt means a checksum or a bounds/overlap check failed.
	Corrupt
	// BadSlot means the slot index is out of range or no slot is usable.
	BadSlot
	// AlreadyInitialized means init found a valid header.
	AlreadyInitialized
	// AlreadyExists means the slot is already occupied.
	AlreadyExists
	// AlreadyEmpty means the slot to wipe is empty.
	AlreadyEmpty
	// NoData means the slot to load is empty.
	NoData
	// BufferTooSmall means the caller's buffer cannot hold the payload.
	BufferTooSmall
	// OutOfSpace means the hole is too small or has no free gap.
	OutOfSpace
	// KeyRejected means the uuid is all-zero or does not match.
	KeyRejected
)

var kindText = map[Kind]string{
	IO:                 "i/o error",
	NotInitialized:     "not initialized",
	Unsupported:        "unsupported",
	Corrupt:            "corrupt",
	BadSlot:            "bad slot",
	AlreadyInitialized: "already initialized",
	AlreadyExists:      "slot already in use",
	AlreadyEmpty:       "slot already empty",
	NoData:             "no data",
	BufferTooSmall:     "buffer too small",
	OutOfSpace:         "out of space",
	KeyRejected:        "uuid rejected",
}

func (k Kind) Error() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) String() string { return k.Error() }
