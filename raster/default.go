package raster

import (
	"errors"
	"sync"
)

// ErrEngineLocked is returned by SetDefaultEngine once the default
// engine has been read; the default is fixed for the process lifetime
// after its first use.
var ErrEngineLocked = errors.New("default raster engine already in use")

var (
	defaultMu     sync.Mutex
	defaultEngine Engine = &BuiltinEngine{}
	defaultLocked bool
)

// DefaultEngine returns the process-wide engine and locks it in.
func DefaultEngine() Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLocked = true
	return defaultEngine
}

// SetDefaultEngine installs engine as the process-wide default. It must
// be called before any rendering; after DefaultEngine has been consulted
// once the configuration is immutable and ErrEngineLocked is returned.
func SetDefaultEngine(engine Engine) error {
	if engine == nil {
		return errors.New("nil raster engine")
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLocked {
		return ErrEngineLocked
	}
	defaultEngine = engine
	return nil
}
