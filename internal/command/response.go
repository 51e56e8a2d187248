package command

import "github.com/roach88/diary/internal/engine"

// Response is the result shape handed back to the UI layer.
//
// Exactly one of Data and Error is set. Operations without a payload
// (delete, dump, shutdown) succeed with an empty object.
type Response[T any] struct {
	Data  *T      `json:"data"`
	Error *string `json:"error"`
}

// OK reports whether the call succeeded.
func (r Response[T]) OK() bool {
	return r.Error == nil
}

// Err returns the error message, or "" on success.
func (r Response[T]) Err() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Empty is the payload of operations that return nothing.
type Empty = struct{}

func success[T any](v T) Response[T] {
	return Response[T]{Data: &v}
}

func empty() Response[Empty] {
	return Response[Empty]{Data: &Empty{}}
}

func failure[T any](err error) Response[T] {
	msg := Message(err)
	return Response[T]{Error: &msg}
}

// Message renders err for a Response. Every no response variant collapses
// to engine.ErrNoResponse's text; store errors are passed through verbatim.
func Message(err error) string {
	if engine.IsNoResponse(err) {
		return engine.ErrNoResponse.Error()
	}
	return err.Error()
}
