//go:build integration

package natsclient

import (
	"fmt"
	"os"
	"testing"
)

// Package-level shared test client to avoid Docker resource exhaustion
var sharedNATS *TestClient

func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION_TESTS") == "" {
		os.Exit(m.Run())
	}

	tc, err := NewSharedTestClient(WithKVBuckets("linkstream_test"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start shared NATS container: %v\n", err)
		os.Exit(1)
	}
	sharedNATS = tc

	code := m.Run()
	_ = tc.Terminate()
	os.Exit(code)
}

func getSharedClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("Skipping integration test - set INTEGRATION_TESTS=1 to run")
	}
	if sharedNATS == nil {
		t.Fatal("shared NATS client not initialized")
	}
	return sharedNATS.Client
}
