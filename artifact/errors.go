package artifact

import "errors"

// ErrNotFound is returned by Get and Delete when no artifact exists under
// the given session and id. Match it with errors.Is.
var ErrNotFound = errors.New("artifact not found")
