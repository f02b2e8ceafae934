package gateway

import "fmt"

// ErrRetrievalUnavailable is returned by Index when the embedder or the
// backing store fails. Query never returns it.
type ErrRetrievalUnavailable struct {
	Collection string
	Err        error
}

func (e *ErrRetrievalUnavailable) Error() string {
	return fmt.Sprintf("retrieval unavailable for %s: %v", e.Collection, e.Err)
}

func (e *ErrRetrievalUnavailable) Unwrap() error { return e.Err }
