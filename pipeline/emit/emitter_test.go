package emit

import "testing"

// TestEmitterImplementations locks every concrete emitter into the Emitter
// contract at compile time.
func TestEmitterImplementations(t *testing.T) {
	var (
		_ Emitter = NewNullEmitter()
		_ Emitter = NewLogEmitter(nil, false)
		_ Emitter = NewBufferedEmitter(NewNullEmitter(), 10)
	)
}
