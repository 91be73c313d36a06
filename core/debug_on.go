//go:build tasksdebug

package core

const debugBuild = true
