// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package metadata

import "fmt"

// PathError covers both an unknown path and a path hidden by the
// visibility cascade. The two are deliberately indistinguishable to
// callers: Reason only exists for internal logging, never serialized.
type PathError struct {
	Path   string
	Reason string // "unknown" or "hidden"
}

func (e *PathError) Error() string {
	return fmt.Sprintf("metadata: %s path %q", e.Reason, e.Path)
}

func errUnknown(path string) error { return &PathError{Path: path, Reason: "unknown"} }
func errHidden(path string) error  { return &PathError{Path: path, Reason: "hidden"} }
