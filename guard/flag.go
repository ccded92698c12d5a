package guard

import (
	"os"
	"strconv"
	"sync/atomic"
)

// EnvVar is the environment variable the CLI uses as its recursion flag.
// Child processes (a rebuild started by the generator's output) inherit it.
const EnvVar = "AUTOJSON_RUNNING"

// Flag is the in-process recursion marker
type Flag interface {
	Raised() bool
	Raise() error
	Lower() error
}

// EnvFlag is a Flag stored in the named environment variable. Only a true
// boolean value ("1", "true", ...) counts as raised.
type EnvFlag string

func (f EnvFlag) Raised() bool {
	raised, err := strconv.ParseBool(os.Getenv(string(f)))
	return err == nil && raised
}

func (f EnvFlag) Raise() error { return os.Setenv(string(f), "1") }
func (f EnvFlag) Lower() error { return os.Unsetenv(string(f)) }

// MemoryFlag is a Flag held in memory
type MemoryFlag struct {
	raised atomic.Bool
}

func (f *MemoryFlag) Raised() bool { return f.raised.Load() }

func (f *MemoryFlag) Raise() error {
	f.raised.Store(true)
	return nil
}

func (f *MemoryFlag) Lower() error {
	f.raised.Store(false)
	return nil
}
