// Package transaction implements the put-transaction state machine: an
// ephemeral staging object that buffers up to three pending writes for a
// single (guid, hash) and atomically commits them on Finalize.
package transaction

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/cachegrid/assetcache/pkg/key"
)

// State is the put-transaction's lifecycle stage.
type State int

const (
	// StateOpen accepts GetWriteStream calls.
	StateOpen State = iota
	// StateFinalizing is set for the duration of Finalize.
	StateFinalizing
	// StateCommitted is terminal: finalize succeeded.
	StateCommitted
	// StateFailed is terminal: finalize failed (incomplete write).
	StateFailed
	// StateInvalidated is terminal: Invalidate was called.
	StateInvalidated
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinalizing:
		return "finalizing"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	case StateInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// CommittedFile is a completed pending write, ready to be committed into
// storage or copied out via WriteFilesToPath.
type CommittedFile struct {
	Kind key.Kind
	Data []byte
}

// PutTransaction buffers a version's pending writes and atomically commits
// them. It is created per upload via an engine's CreatePutTransaction and is
// terminal after Finalize or Invalidate.
//
// A transaction references no engine, and neither backend keeps a
// reference to it, so an abandoned or invalidated transaction never keeps an
// engine instance alive, and vice versa.
type PutTransaction struct {
	mu sync.Mutex

	guid key.GUID
	hash key.Hash

	state   State
	pending map[key.Kind]*pendingWrite

	manifest []key.Kind
	files    []CommittedFile

	// finalizeCh is closed exactly once, on successful finalize, so
	// observers can wait on the "finalize" event instead of polling state.
	finalizeCh     chan struct{}
	finalizeClosed bool
}

// pendingWrite tracks a single in-flight write slot.
type pendingWrite struct {
	kind         key.Kind
	declaredSize uint64
	buf          bytes.Buffer
	written      uint64
	closed       bool
}

// New creates a transaction staging writes for (guid, hash).
func New(guid key.GUID, hash key.Hash) *PutTransaction {
	return &PutTransaction{
		guid:       guid,
		hash:       hash,
		state:      StateOpen,
		pending:    make(map[key.Kind]*pendingWrite),
		finalizeCh: make(chan struct{}),
	}
}

// GUID returns the transaction's guid.
func (t *PutTransaction) GUID() key.GUID { return t.guid }

// Hash returns the transaction's hash.
func (t *PutTransaction) Hash() key.Hash { return t.hash }

// Version returns the (guid, hash) pair this transaction targets.
func (t *PutTransaction) Version() key.VersionKey {
	return key.VersionKey{GUID: t.guid, Hash: t.hash}
}

// IsValid reports whether the transaction finalized successfully and has not
// since been invalidated.
func (t *PutTransaction) IsValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateCommitted
}

// Manifest returns the kinds completed by the transaction, in the fixed
// i, a, r kind order; the order in which their writes were closed is not
// recorded. Empty until a successful Finalize, and cleared by Invalidate.
func (t *PutTransaction) Manifest() []key.Kind {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]key.Kind(nil), t.manifest...)
}

// Files returns the resulting file descriptors. Empty until a successful
// Finalize, and cleared by Invalidate.
func (t *PutTransaction) Files() []CommittedFile {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]CommittedFile(nil), t.files...)
}

// Done returns a channel that is closed exactly once, when Finalize
// succeeds. This is the explicit-state replacement for the source's
// "finalize" event.
func (t *PutTransaction) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalizeCh
}

// GetWriteStream allocates a pending-write slot for kind and returns a
// writer that counts bytes written against the declared size. kind must be
// one of i, a, r and size must be > 0.
func (t *PutTransaction) GetWriteStream(kind key.Kind, size uint64) (*WriteStream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateOpen {
		return nil, fmt.Errorf("getWriteStream: %w", ErrAlreadyFinalized)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("getWriteStream: %w: unknown kind %q", ErrInvalidArgument, kind)
	}
	if size == 0 {
		return nil, fmt.Errorf("getWriteStream: %w: size must be > 0", ErrInvalidArgument)
	}

	pw := &pendingWrite{kind: kind, declaredSize: size}
	t.pending[kind] = pw

	return &WriteStream{pw: pw}, nil
}

// Finalize requires every pending write to have closed with
// bytesWritten == declaredSize. On success it populates Manifest and Files
// in the fixed i, a, r kind order and closes the Done channel exactly once. On failure
// it leaves the transaction in StateFailed and returns ErrIncompleteWrite;
// nothing becomes observable through any engine.
//
// Finalize is idempotent once committed: a decorator (such as the
// reliability filter) may finalize a transaction ahead of handing it to the
// underlying engine's EndPutTransaction, which calls Finalize again. A
// transaction that is already committed simply confirms success rather than
// reporting ErrAlreadyFinalized, since nothing about that outcome changed.
func (t *PutTransaction) Finalize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateCommitted {
		return nil
	}
	if t.state != StateOpen {
		return fmt.Errorf("finalize: %w", ErrAlreadyFinalized)
	}
	t.state = StateFinalizing

	order := t.completionOrder()
	for _, kind := range order {
		pw := t.pending[kind]
		if !pw.closed || pw.written != pw.declaredSize {
			t.state = StateFailed
			return fmt.Errorf("finalize %s: %w: wrote %d of %d bytes",
				kind, ErrIncompleteWrite, pw.written, pw.declaredSize)
		}
	}

	manifest := make([]key.Kind, 0, len(order))
	files := make([]CommittedFile, 0, len(order))
	for _, kind := range order {
		pw := t.pending[kind]
		manifest = append(manifest, kind)
		files = append(files, CommittedFile{Kind: kind, Data: pw.buf.Bytes()})
	}

	t.manifest = manifest
	t.files = files
	t.state = StateCommitted

	if !t.finalizeClosed {
		close(t.finalizeCh)
		t.finalizeClosed = true
	}

	return nil
}

// completionOrder returns pending kinds in the fixed i, a, r order. Writes
// within a transaction are independent of each other's order, but the
// manifest and files slices need a deterministic order, so Finalize reports
// completion in the canonical kind order rather than insertion order.
func (t *PutTransaction) completionOrder() []key.Kind {
	order := make([]key.Kind, 0, len(t.pending))
	for _, k := range []key.Kind{key.KindInfo, key.KindAsset, key.KindResource} {
		if _, ok := t.pending[k]; ok {
			order = append(order, k)
		}
	}
	return order
}

// Invalidate forces the transaction to a terminal Invalidated state,
// clearing Files and Manifest so IsValid reports false. Safe to call after
// a successful Finalize.
func (t *PutTransaction) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = StateInvalidated
	t.manifest = nil
	t.files = nil
}

// State returns the transaction's current lifecycle state.
func (t *PutTransaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
