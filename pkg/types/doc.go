// Package types defines the Config, EntryKey, Record and BackingStore types
// and the standard error values for the Pantry table store.
//
// The table store (package table) depends only on these definitions; concrete
// backing stores live under internal/ and are selected by Config.Backend.
package types
