package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mesh-intelligence/pantry/pkg/table"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// cliError carries the exit code a failed command should end the process
// with.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func userError(err error) error {
	return &cliError{code: exitUserError, err: err}
}

func sysError(err error) error {
	return &cliError{code: exitSysError, err: err}
}

// storeError classifies an error returned by the table store. Missing
// entries, bad keys and type conflicts are the caller's doing; anything else
// is a system failure.
func storeError(err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrEncode),
		errors.Is(err, types.ErrTypeMismatch):
		return userError(err)
	default:
		return sysError(err)
	}
}

// jsonTable addresses a table whose keys and values are arbitrary JSON.
type jsonTable = table.ID[any, json.RawMessage]

func parseTable(arg string) (jsonTable, error) {
	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return jsonTable{}, userError(fmt.Errorf("invalid table id %q: must be an unsigned integer", arg))
	}
	return table.NewID[any, json.RawMessage](n), nil
}

// parseKey decodes a JSON key argument. Numbers are kept as written so that
// large integers encode back to the same entry key.
func parseKey(arg string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(arg)))
	dec.UseNumber()
	var key any
	if err := dec.Decode(&key); err != nil {
		return nil, userError(fmt.Errorf("invalid key %q: %v", arg, err))
	}
	if dec.More() {
		return nil, userError(fmt.Errorf("invalid key %q: trailing data", arg))
	}
	return key, nil
}

func parseValue(arg string) (json.RawMessage, error) {
	if !json.Valid([]byte(arg)) {
		return nil, userError(fmt.Errorf("invalid value %q: not valid JSON", arg))
	}
	return json.RawMessage(arg), nil
}

// openStore opens the table store described by the loaded configuration.
func (a *app) openStore() (*table.Store, error) {
	s, err := table.Open(a.cfg, a.log)
	if err != nil {
		if errors.Is(err, types.ErrBackendUnknown) ||
			errors.Is(err, types.ErrBackendEmpty) ||
			errors.Is(err, types.ErrCodecUnknown) ||
			errors.Is(err, types.ErrSyncStrategyUnknown) ||
			errors.Is(err, types.ErrBatchSizeInvalid) ||
			errors.Is(err, types.ErrDataDirRequired) {
			return nil, userError(err)
		}
		return nil, sysError(err)
	}
	return s, nil
}

// withStore opens the store, runs fn and closes the store, reporting the
// first error.
func (a *app) withStore(fn func(s *table.Store) error) (err error) {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = sysError(cerr)
		}
	}()
	return fn(s)
}
