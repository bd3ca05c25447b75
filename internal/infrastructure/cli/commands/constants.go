package commands

import "time"

// CLI-specific constants
const (
	// DefaultEditorCommand is the default editor command
	DefaultEditorCommand = "vi"
	// TimestampFormat is used when printing history records
	TimestampFormat = "2006-01-02 15:04"
	// DefaultRelatedWait bounds how long `images related` waits for preloading
	DefaultRelatedWait = 30 * time.Second
)

// Error messages
const (
	ErrHistoryUnavailable      = "history store unavailable"
	ErrImagesUnavailable       = "image services unavailable"
	ErrKeyRequired             = "--key is required"
	ErrTextRequired            = "entry text is required"
	ErrUnknownKind             = "unknown --kind %q (search|consult|view|api)"
	ErrInvalidPreloadPair      = "invalid preload argument %q, want key=url"
	ErrRecordNotFound          = "no history record with id %s"
)

// Success messages
const (
	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
	MsgNoHistoryRecorded        = "No history recorded yet."
	MsgNoMatchingHistory        = "No history matches the filter."
	MsgNoRelatedImages          = "No related images."
)
