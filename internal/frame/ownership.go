package frame

import (
	"log/slog"
	"sync/atomic"

	"github.com/smazurov/framegrab/internal/observer"
)

// payload is the ownership variant behind a frame's plane slices. Two
// implementations exist: ownedBuffer for allocator-backed planes and
// borrowedBuffer for planes the capture subsystem controls.
type payload interface {
	owned() bool
}

// ownedBuffer marks planes living in the frame's own allocator. No release
// obligation.
type ownedBuffer struct{}

func (ownedBuffer) owned() bool { return true }

// borrowedBuffer carries the release obligation for an externally-owned
// buffer. The obligation fires at most once; if the owning capture session
// has expired by then, the native release is skipped so freed session state
// is never touched.
type borrowedBuffer struct {
	handle    any
	releaseFn func()
	session   *Token
	released  atomic.Bool
}

func (*borrowedBuffer) owned() bool { return false }

func (b *borrowedBuffer) release(sink observer.Sink, logger *slog.Logger) {
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	if b.session != nil && !b.session.Alive() {
		// Benign: the device session closed while a consumer still held
		// the frame. Reported, not surfaced as a failure.
		sink.Observe(observer.New(observer.KindReleaseAfterExpiry,
			"external buffer outlived its capture session, skipping native release",
			map[string]any{"handle": b.handle}))
		logger.Debug("skipped native release for expired session")
		return
	}
	if b.releaseFn != nil {
		b.releaseFn()
	}
}

// Token marks a capture session's liveness. External buffer releases check
// it before calling back into the session, which breaks the dependency
// cycle between a frame and its originating device session.
type Token struct {
	expired atomic.Bool
}

// NewToken returns a live session token.
func NewToken() *Token { return &Token{} }

// Expire marks the session closed. Releases observed after this point skip
// the native callback.
func (t *Token) Expire() { t.expired.Store(true) }

// Alive reports whether the session is still open.
func (t *Token) Alive() bool { return !t.expired.Load() }
