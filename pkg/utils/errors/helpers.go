package errors

import "errors"

// FromError 把任意 error 归一成 Errno。
// err 本身是（或包装了）Errno 时直接取出，否则按 ErrInternal 兜底。
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}
