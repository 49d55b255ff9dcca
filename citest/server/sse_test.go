package server_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GaxGuy/agpl-BifrostMCP/citest/testutil"
	"github.com/GaxGuy/agpl-BifrostMCP/pkg/types"
)

func location(uri string, line, start, end int) types.Location {
	return types.Location{
		URI: uri,
		Range: types.Range{
			Start: types.Position{Line: line, Character: start},
			End:   types.Position{Line: line, Character: end},
		},
	}
}

// toolText extracts the single text content item of a tools/call result.
func toolText(resp *testutil.RPCResponse) (string, bool) {
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	Expect(json.Unmarshal(resp.Result, &result)).To(Succeed())
	Expect(result.Content).To(HaveLen(1))
	Expect(result.Content[0].Type).To(Equal("text"))
	return result.Content[0].Text, result.IsError
}

var _ = Describe("MCP over SSE", func() {
	Describe("GET /sse", func() {
		BeforeEach(func() {
			startServer()
		})

		It("should set event stream headers and announce the endpoint", func() {
			sse, endpoint := connect()

			Expect(sse.Headers.Get("Content-Type")).To(Equal("text/event-stream"))
			Expect(sse.Headers.Get("Cache-Control")).To(Equal("no-cache"))
			Expect(endpoint).To(HavePrefix("/message?sessionId="))
		})

		It("should end the previous stream when a new one connects", func() {
			first, _ := connect()
			_, endpoint := connect()

			Eventually(first.Done(), 5*time.Second).Should(BeClosed())
			Expect(status()["channel"]).To(Equal(endpoint[len("/message?sessionId="):]))
		})

		It("should return to absent when the client disconnects", func() {
			sse, _ := connect()
			Eventually(func() any { return status()["state"] }).Should(Equal("live"))

			sse.Close()
			Eventually(func() any { return status()["state"] }, 5*time.Second).Should(Equal("absent"))
		})
	})

	Describe("heartbeats", func() {
		BeforeEach(func() {
			startServer(testutil.WithHeartbeat(50 * time.Millisecond))
		})

		It("should keep an idle stream alive with comments", func() {
			sse, _ := connect()
			Expect(sse.WaitForHeartbeat(2 * time.Second)).To(Succeed())
			Expect(sse.WaitForHeartbeat(2 * time.Second)).To(Succeed())
		})
	})

	Describe("pending queue", func() {
		BeforeEach(func() {
			startServer()
		})

		It("should replay queued requests in order after the endpoint event", func() {
			for i := 1; i <= 5; i++ {
				resp, err := client.Post(ctx, "/message", testutil.Request(i, "ping", nil))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(202))
			}
			Expect(status()["queued"]).To(BeEquivalentTo(5))

			sse := testServer.SSEClient()
			Expect(sse.Connect(ctx)).To(Succeed())
			DeferCleanup(sse.Close)

			first, ok := <-sse.Events()
			Expect(ok).To(BeTrue())
			Expect(first.Type).To(Equal(testutil.EventEndpoint))

			for i := 1; i <= 5; i++ {
				resp, err := sse.WaitForResponse(5 * time.Second)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(resp.ID)).To(Equal(jsonNumber(i)))
			}
			Expect(status()["queued"]).To(BeEquivalentTo(0))
		})

		It("should answer a queued tools/list with exactly one tool", func() {
			_, err := client.Post(ctx, "/message", testutil.Request(1, "tools/list", nil))
			Expect(err).NotTo(HaveOccurred())

			sse, _ := connect()
			resp, err := sse.WaitForResponse(5 * time.Second)
			Expect(err).NotTo(HaveOccurred())

			var result struct {
				Tools []struct {
					Name string `json:"name"`
				} `json:"tools"`
			}
			Expect(json.Unmarshal(resp.Result, &result)).To(Succeed())
			Expect(result.Tools).To(HaveLen(1))
			Expect(result.Tools[0].Name).To(Equal("find_usages"))
		})
	})

	Describe("find_usages", func() {
		var (
			sse      *testutil.SSEClient
			endpoint string
			fileURI  string
		)

		BeforeEach(func() {
			startServer(testutil.WithProviderTimeout(500 * time.Millisecond))

			var err error
			fileURI, err = testServer.WorkDir.CreateFile("src/b.ts", "import { a } from './a'\n\nconst x = a()\n\n\tconsole.log(a)\n")
			Expect(err).NotTo(HaveOccurred())

			sse, endpoint = connect()
		})

		call := func(id int, uri string) *testutil.RPCResponse {
			resp, err := client.Post(ctx, endpoint, testutil.FindUsagesCall(id, uri, 0, 9))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(202))
			Expect(resp.String()).To(Equal("Accepted"))

			rpc, err := sse.WaitForResponse(5 * time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(rpc.ID)).To(Equal(jsonNumber(id)))
			return rpc
		}

		It("should return each reference with its trimmed source line", func() {
			testServer.Provider.Set([]types.Location{
				location(fileURI, 2, 10, 11),
				location(fileURI, 4, 13, 14),
			}, nil)

			text, isError := toolText(call(1, testServer.WorkDir.URI("src/a.ts")))
			Expect(isError).To(BeFalse())

			var refs []types.ReferenceResult
			Expect(json.Unmarshal([]byte(text), &refs)).To(Succeed())
			Expect(refs).To(HaveLen(2))
			Expect(refs[0].URI).To(Equal(fileURI))
			Expect(refs[0].Preview).To(Equal("const x = a()"))
			Expect(refs[1].Range.Start.Line).To(Equal(4))
			Expect(refs[1].Preview).To(Equal("console.log(a)"))

			calls := testServer.Provider.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Position).To(Equal(types.Position{Line: 0, Character: 9}))
		})

		It("should pick up file changes in previews", func() {
			testServer.Provider.Set([]types.Location{location(fileURI, 2, 10, 11)}, nil)

			text, _ := toolText(call(1, fileURI))
			Expect(text).To(ContainSubstring("const x = a()"))

			path := filepath.Join(testServer.WorkDir.Path, "src", "b.ts")
			Expect(os.WriteFile(path, []byte("\n\nlet y = a()\n"), 0644)).To(Succeed())

			Eventually(func() string {
				text, _ := toolText(call(2, fileURI))
				return text
			}, 5*time.Second, 100*time.Millisecond).Should(ContainSubstring("let y = a()"))
		})

		It("should keep references whose preview cannot be read", func() {
			missing := testServer.WorkDir.URI("gone.ts")
			testServer.Provider.Set([]types.Location{location(missing, 0, 0, 1)}, nil)

			text, isError := toolText(call(1, fileURI))
			Expect(isError).To(BeFalse())

			var refs []types.ReferenceResult
			Expect(json.Unmarshal([]byte(text), &refs)).To(Succeed())
			Expect(refs).To(HaveLen(1))
			Expect(refs[0].Preview).To(Equal(types.PreviewUnavailable))
		})

		It("should report an empty lookup as text", func() {
			text, isError := toolText(call(1, fileURI))
			Expect(isError).To(BeFalse())
			Expect(text).To(Equal("No references found"))
		})

		It("should report provider failures without the cause", func() {
			testServer.Provider.Set(nil, errors.New("language server crashed"))

			text, isError := toolText(call(1, fileURI))
			Expect(isError).To(BeTrue())
			Expect(text).To(Equal("Failed to find references"))
		})

		It("should bound slow lookups", func() {
			testServer.Provider.SetDelay(5 * time.Second)

			text, isError := toolText(call(1, fileURI))
			Expect(isError).To(BeTrue())
			Expect(text).To(Equal("Failed to find references"))
		})

		It("should answer again once a slow provider recovers", func() {
			testServer.Provider.SetDelay(5 * time.Second)

			text, isError := toolText(call(1, fileURI))
			Expect(isError).To(BeTrue())
			Expect(text).To(Equal("Failed to find references"))

			testServer.Provider.Reset()

			text, isError = toolText(call(2, fileURI))
			Expect(isError).To(BeFalse())
			Expect(text).To(Equal("No references found"))
			Expect(testServer.Provider.Calls()).To(HaveLen(1))
		})

		It("should reject invalid arguments before calling the provider", func() {
			resp, err := client.Post(ctx, endpoint, testutil.Request(7, "tools/call", map[string]any{
				"name":      "find_usages",
				"arguments": map[string]any{"textDocument": map[string]any{"uri": fileURI}},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(202))

			rpc, err := sse.WaitForResponse(5 * time.Second)
			Expect(err).NotTo(HaveOccurred())
			text, isError := toolText(rpc)
			Expect(isError).To(BeTrue())
			Expect(text).To(HavePrefix("Invalid arguments"))
			Expect(testServer.Provider.Calls()).To(BeEmpty())
		})

		It("should name unknown tools", func() {
			resp, err := client.Post(ctx, endpoint, testutil.Request(8, "tools/call", map[string]any{
				"name":      "unknown_tool",
				"arguments": map[string]any{},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(202))

			rpc, err := sse.WaitForResponse(5 * time.Second)
			Expect(err).NotTo(HaveOccurred())
			text, isError := toolText(rpc)
			Expect(isError).To(BeTrue())
			Expect(text).To(Equal("Unknown tool: unknown_tool"))
		})
	})
})

func jsonNumber(i int) string {
	data, _ := json.Marshal(i)
	return string(data)
}
