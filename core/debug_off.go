//go:build !tasksdebug

package core

// debugBuild makes routines re-panic task failures after reporting them.
// Enable it with -tags tasksdebug.
const debugBuild = false
