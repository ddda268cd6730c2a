package remotesim

import (
	"net"
	"path/filepath"
	"testing"
)

// Start runs a Server on a loopback port backed by a fresh database in
// tb.TempDir. It returns the server and the API base URL (ending in /api).
// Both are torn down by tb.Cleanup.
func Start(tb testing.TB, opts ...Option) (*Server, string) {
	tb.Helper()

	srv, err := New(filepath.Join(tb.TempDir(), "remote.db"), opts...)
	if err != nil {
		tb.Fatalf("start remote: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		srv.Close()
		tb.Fatalf("listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ln)
	}()
	tb.Cleanup(func() {
		// Shutdown is a no-op until Serve has registered ln; closing ln
		// makes Serve return whichever side of that it is on.
		_ = srv.Shutdown()
		_ = ln.Close()
		<-done
		_ = srv.Close()
	})
	return srv, "http://" + ln.Addr().String() + "/api"
}
