package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storeledger/internal/core/apperror"
)

// errOutOfSync is returned by check when any item disagrees with its
// ledger. It maps to exit code 2.
var errOutOfSync = errors.New("snapshots out of sync with the ledger")

// options are the parsed flags and positional arguments of one command.
type options struct {
	positional []string
	values     map[string]string
	flags      map[string]bool
}

// booleanFlags take no value.
var booleanFlags = map[string]bool{"json": true}

func parseArgs(args []string) (*options, error) {
	o := &options{values: make(map[string]string), flags: make(map[string]bool)}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			o.positional = append(o.positional, arg)
			continue
		}

		name := strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(name, "="); ok {
			o.values[k] = v
			continue
		}
		if booleanFlags[name] {
			o.flags[name] = true
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("--%s requires a value", name)
		}
		o.values[name] = args[i+1]
		i++
	}
	return o, nil
}

func (o *options) arg(i int) string {
	if i < len(o.positional) {
		return o.positional[i]
	}
	return ""
}

func (o *options) day(name string) (*time.Time, error) {
	v, ok := o.values[name]
	if !ok || v == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return &d, nil
}

func (o *options) positiveInt(name string, def int) (int, error) {
	v, ok := o.values[name]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("--%s must be a positive number", name)
	}
	return n, nil
}

// exitCode maps errors to process exit codes: 2 for ledger integrity
// problems, 3 for rejected operations, 1 otherwise.
func exitCode(err error) int {
	if errors.Is(err, errOutOfSync) {
		return 2
	}
	switch apperror.ClassOf(err) {
	case apperror.ClassIntegrity:
		return 2
	case apperror.ClassRejected:
		return 3
	}
	return 1
}
