package server_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GaxGuy/agpl-BifrostMCP/citest/testutil"
)

var (
	testServer *testutil.TestServer
	client     *testutil.TestClient
	ctx        context.Context
)

func TestServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Server Suite")
}

// startServer gives each test its own instance so channel state never leaks
// between tests.
func startServer(opts ...testutil.TestServerOption) {
	var err error
	testServer, err = testutil.StartTestServer(opts...)
	Expect(err).NotTo(HaveOccurred(), "Failed to start test server")

	client = testServer.Client()
	ctx = context.Background()

	DeferCleanup(func() {
		Expect(testServer.Stop()).To(Succeed())
	})
}

// connect opens an event stream and returns it with its message endpoint.
func connect() (*testutil.SSEClient, string) {
	sse := testServer.SSEClient()
	Expect(sse.Connect(ctx)).To(Succeed())
	DeferCleanup(sse.Close)

	endpoint, err := sse.WaitForEndpoint(5 * time.Second)
	Expect(err).NotTo(HaveOccurred())
	return sse, endpoint
}

// status fetches GET /status.
func status() map[string]any {
	resp, err := client.Get(ctx, "/status")
	Expect(err).NotTo(HaveOccurred())
	Expect(resp.StatusCode).To(Equal(200))

	var body map[string]any
	Expect(resp.JSON(&body)).To(Succeed())
	return body
}
