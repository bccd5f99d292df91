package notify

import "errors"

var (
	// ErrDirectoryLookup wraps membership resolution failures.
	ErrDirectoryLookup = errors.New("notify: directory lookup failed")
	// ErrTransportPublish wraps publish failures.
	ErrTransportPublish = errors.New("notify: transport publish failed")
	// ErrCollaboratorPanic wraps a recovered panic.
	ErrCollaboratorPanic = errors.New("notify: collaborator panicked")
)

// Result describes what one fan-out call did.
type Result struct {
	Event      string
	Recipients []int64
	Topics     []Topic
	Published  int
	Errors     []error
}

// OK reports whether every step succeeded.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Err joins all recorded failures, or returns nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}
