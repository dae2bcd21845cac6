package mcpplugin

import (
	"context"
	"os"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const mcpStdioHelperEnv = "MAIAR_MCP_STDIO_HELPER"

func newPingServer(name string) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer(name, "1.0.0")
	server.AddTool(mcpgo.NewTool("ping", mcpgo.WithDescription("Answers pong")),
		func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			return &mcpgo.CallToolResult{
				Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: "pong"}},
			}, nil
		})
	return server
}

func TestHelperMCPStdioServer(t *testing.T) {
	if os.Getenv(mcpStdioHelperEnv) != "1" {
		return
	}
	if err := mcpserver.ServeStdio(newPingServer("test-stdio")); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func TestClientStdioListToolsAndCall(t *testing.T) {
	t.Setenv(mcpStdioHelperEnv, "1")

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	client, err := Connect(context.Background(), Server{
		Name:    "helper",
		Command: exe,
		Args:    []string{"-test.run", "TestHelperMCPStdioServer"},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) == 0 || tools[0].Name != "ping" {
		t.Fatalf("expected tool 'ping', got %+v", tools)
	}

	result, err := client.CallTool(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if out, err := toolResultToOutput(result); err != nil || out != "pong" {
		t.Fatalf("unexpected tool output %v, %v", out, err)
	}
}

func TestClientStreamableHTTP(t *testing.T) {
	httpServer := mcpserver.NewTestStreamableHTTPServer(newPingServer("test-http"))
	defer httpServer.Close()

	client, err := Connect(context.Background(), Server{Name: "http", URL: httpServer.URL})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Description != "Answers pong" {
		t.Fatalf("unexpected tools %+v", tools)
	}
}

func TestConnectRequiresTarget(t *testing.T) {
	if _, err := Connect(context.Background(), Server{Name: "empty"}); err == nil {
		t.Fatal("expected error without command or url")
	}
}
