package transaction

import "errors"

var (
	// ErrInvalidArgument indicates a zero/negative size or unknown kind
	// passed to GetWriteStream.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIncompleteWrite indicates a pending write closed with
	// bytesWritten != declaredSize.
	ErrIncompleteWrite = errors.New("incomplete write")

	// ErrAlreadyFinalized indicates an operation on a non-open transaction.
	ErrAlreadyFinalized = errors.New("transaction already finalized")

	// ErrStreamClosed indicates a write to an already-closed WriteStream.
	ErrStreamClosed = errors.New("write stream closed")

	// ErrNotFinalized indicates WriteFilesToPath was called before a
	// successful Finalize.
	ErrNotFinalized = errors.New("transaction not finalized")
)
