package server_test

import (
	"encoding/json"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

var _ = Describe("MCP SDK Client", func() {
	var session *sdkmcp.ClientSession

	BeforeEach(func() {
		startServer()

		sdkClient := sdkmcp.NewClient(&sdkmcp.Implementation{
			Name:    "bifrost-citest",
			Version: "1.0.0",
		}, nil)

		var err error
		session, err = sdkClient.Connect(ctx, &sdkmcp.SSEClientTransport{Endpoint: testServer.BaseURL + "/sse"}, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(session.Close)
	})

	It("should complete the initialize handshake", func() {
		init := session.InitializeResult()
		Expect(init).NotTo(BeNil())
		Expect(init.ServerInfo.Name).To(Equal("bifrost"))
		Expect(init.ServerInfo.Version).To(Equal("test"))
		Expect(init.Capabilities.Tools).NotTo(BeNil())
	})

	It("should list find_usages with its input schema", func() {
		result, err := session.ListTools(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Tools).To(HaveLen(1))
		Expect(result.Tools[0].Name).To(Equal("find_usages"))

		schema, err := json.Marshal(result.Tools[0].InputSchema)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(schema)).To(ContainSubstring(`"textDocument"`))
		Expect(string(schema)).To(ContainSubstring(`"position"`))
	})

	It("should call find_usages", func() {
		fileURI, err := testServer.WorkDir.CreateFile("main.go", "package main\n\nfunc main() { run() }\n")
		Expect(err).NotTo(HaveOccurred())
		testServer.Provider.Set([]types.Location{location(fileURI, 2, 14, 17)}, nil)

		result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
			Name: "find_usages",
			Arguments: map[string]any{
				"textDocument": map[string]any{"uri": fileURI},
				"position":     map[string]any{"line": 2, "character": 14},
				"context":      map[string]any{"includeDeclaration": true},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())
		Expect(result.Content).To(HaveLen(1))

		text, ok := result.Content[0].(*sdkmcp.TextContent)
		Expect(ok).To(BeTrue())

		var refs []types.ReferenceResult
		Expect(json.Unmarshal([]byte(text.Text), &refs)).To(Succeed())
		Expect(refs).To(HaveLen(1))
		Expect(refs[0].Preview).To(Equal("func main() { run() }"))
	})

	It("should answer ping", func() {
		Expect(session.Ping(ctx, nil)).To(Succeed())
	})

	It("should keep serving after a tool error", func() {
		result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
			Name:      "find_usages",
			Arguments: map[string]any{"position": map[string]any{"line": -1, "character": 0}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())

		Eventually(func() error { return session.Ping(ctx, nil) }, 2*time.Second).Should(Succeed())
	})
})
