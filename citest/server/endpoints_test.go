package server_test

import (
	"net"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GaxGuy/agpl-BifrostMCP/citest/testutil"
)

var _ = Describe("Operational Endpoints", func() {
	BeforeEach(func() {
		startServer()
	})

	Describe("GET /health", func() {
		It("should report ok", func() {
			resp, err := client.Get(ctx, "/health")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(200))
			Expect(resp.String()).To(MatchJSON(`{"status":"ok"}`))
		})
	})

	Describe("GET /status", func() {
		It("should start absent with an empty queue", func() {
			body := status()
			Expect(body["state"]).To(Equal("absent"))
			Expect(body["queued"]).To(BeEquivalentTo(0))
			Expect(body["tools"]).To(ConsistOf("find_usages"))
			Expect(body["languageServers"]).To(BeEmpty())
		})

		It("should report the live channel", func() {
			connect()
			Eventually(func() any { return status()["state"] }).Should(Equal("live"))
			Expect(status()["channel"]).NotTo(BeEmpty())
		})
	})

	Describe("GET /metrics", func() {
		It("should expose bifrost metrics", func() {
			_, err := client.Post(ctx, "/message", map[string]any{"jsonrpc": "2.0", "id": 1, "method": "ping"})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() string {
				resp, err := client.Get(ctx, "/metrics")
				Expect(err).NotTo(HaveOccurred())
				return resp.String()
			}).Should(And(
				ContainSubstring(`bifrost_messages_total{outcome="queued"} 1`),
				ContainSubstring("bifrost_pending_messages 1"),
			))
		})
	})

	Describe("POST /message", func() {
		It("should reject invalid JSON with a parse error", func() {
			resp, err := client.PostRaw(ctx, "/message", []byte("{not json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(400))
			Expect(resp.String()).To(MatchJSON(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`))
		})

		It("should acknowledge a queued request with the provisional result", func() {
			resp, err := client.Post(ctx, "/message", map[string]any{"jsonrpc": "2.0", "id": "a", "method": "tools/list"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(202))
			Expect(resp.String()).To(MatchJSON(`{"jsonrpc":"2.0","id":"a","result":{"status":"queued"}}`))
			Expect(status()["queued"]).To(BeEquivalentTo(1))
		})
	})
})

var _ = Describe("Port selection", func() {
	It("should fall back to a free port when the preferred one is taken", func() {
		occupied, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(occupied.Close)
		busy := occupied.Addr().(*net.TCPAddr).Port

		startServer(testutil.WithPort(busy))

		Expect(testServer.Port).NotTo(Equal(busy))
		Expect(testServer.BaseURL).To(HaveSuffix(":" + strconv.Itoa(testServer.Port)))

		resp, err := client.Get(ctx, "/health")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
	})
})
