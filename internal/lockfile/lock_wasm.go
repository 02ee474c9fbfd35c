//go:build js && wasm

package lockfile

import "os"

// WASM has no file locking and runs a single process.

func flockExclusiveNonBlock(*os.File) error { return nil }

func flockUnlock(*os.File) error { return nil }
