package plugin

import "errors"

// Error kinds surfaced by plugin loading and startup.
var (
	// ErrNotADirectory is returned by Discover when given a non-directory path.
	ErrNotADirectory = errors.New("plugin: not a directory")
	// ErrSymbolMissing means a dynamic module has no "<stem>_load" symbol.
	ErrSymbolMissing = errors.New("plugin: symbol missing")
	// ErrIncompatibleAPIVersion means a descriptor's api major version does
	// not match the host's.
	ErrIncompatibleAPIVersion = errors.New("plugin: incompatible api version")
	// ErrLoadFailed wraps any other failure while opening a dynamic module.
	ErrLoadFailed = errors.New("plugin: load failed")
	// ErrUnknownKind is returned when a descriptor reports a kind the
	// registry doesn't know how to type-assert into a typed list.
	ErrUnknownKind = errors.New("plugin: unknown kind")
	// ErrPluginShutdownTimeout is logged when a plugin's Stop does not
	// return within the unload budget. The plugin is not force-killed.
	ErrPluginShutdownTimeout = errors.New("plugin: shutdown timeout")
)
