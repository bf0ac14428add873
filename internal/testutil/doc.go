// Package testutil provides fluent builders for the event and session values
// tests assemble repeatedly. Test support only; nothing here belongs on a
// production path.
package testutil
