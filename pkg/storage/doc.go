// Package storage manages the artifact directory.
//
// Files are written to a hidden temporary file in the same directory and
// renamed into place, so a partially transferred artifact is never visible
// under its final name. When two writers race for the same name the last
// rename wins. Existence checks always hit the filesystem because other
// processes may share the directory.
//
// The filesystem is an afero.Fs so tests can run against memory.
package storage
