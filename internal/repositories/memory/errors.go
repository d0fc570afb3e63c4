package memory

import "fmt"

// repoError implements repositories.RepositoryError for the in-memory stores.
type repoError struct {
	msg      string
	notFound bool
	conflict bool
}

func (e *repoError) Error() string       { return e.msg }
func (e *repoError) IsNotFound() bool    { return e != nil && e.notFound }
func (e *repoError) IsConflict() bool    { return e != nil && e.conflict }
func (e *repoError) IsUnavailable() bool { return false }

func notFoundf(format string, args ...any) *repoError {
	return &repoError{msg: fmt.Sprintf(format, args...), notFound: true}
}

func conflictf(format string, args ...any) *repoError {
	return &repoError{msg: fmt.Sprintf(format, args...), conflict: true}
}
