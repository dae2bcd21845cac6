package mcpplugin

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
)

type stubCaller struct {
	tools    []mcp.Tool
	lastName string
	lastArgs map[string]any
	result   *mcp.CallToolResult
	err      error
	closed   bool
}

func (s *stubCaller) ListTools(context.Context) ([]mcp.Tool, error) {
	return s.tools, nil
}

func (s *stubCaller) CallTool(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.lastName = name
	s.lastArgs = args
	return s.result, s.err
}

func (s *stubCaller) Close() error {
	s.closed = true
	return nil
}

type stubHandle struct {
	models *model.Service
}

func (h *stubHandle) CreateEvent(context.Context, core.ContextItem, *core.PlatformContext) error {
	return nil
}

func (h *stubHandle) Models() *model.Service { return h.models }

func newHandle(t *testing.T, responses ...string) (*stubHandle, *model.ScriptedProvider) {
	t.Helper()
	provider := model.NewScriptedProvider("scripted", responses...)
	svc := model.NewService()
	if err := svc.RegisterProvider(provider); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	return &stubHandle{models: svc}, provider
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}}}
}

var fetchTool = mcp.Tool{
	Name:        "fetch",
	Description: "Fetches a URL",
	InputSchema: mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]any{"url": map[string]any{"type": "string"}},
		Required:   []string{"url"},
	},
}

func agentContext(msg string) *core.AgentContext {
	return core.NewAgentContext(&core.PlatformContext{Platform: "test"},
		core.NewUserInput("plugin-test", "receive", "alice", msg))
}

func TestInitRegistersToolActions(t *testing.T) {
	caller := &stubCaller{tools: []mcp.Tool{fetchTool, {Name: "ping"}}}
	p := New("web", caller)
	h, _ := newHandle(t)

	if err := p.Init(context.Background(), h); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.ID() != "plugin-mcp-web" {
		t.Errorf("unexpected id %s", p.ID())
	}
	for _, name := range []string{"fetch", "ping"} {
		if _, ok := plugin.FindExecutor(p, name); !ok {
			t.Errorf("expected action %s", name)
		}
	}
	reqs := p.RequiredCapabilities()
	if len(reqs) != 1 || reqs[0].ID != model.TextGenerationCapability || reqs[0].Optional {
		t.Errorf("expected text-generation requirement, got %+v", reqs)
	}
}

func TestToolActionDerivesArguments(t *testing.T) {
	caller := &stubCaller{tools: []mcp.Tool{fetchTool}, result: textResult("<html>")}
	p := New("web", caller)
	h, provider := newHandle(t, `The arguments are {"url": "https://example.com"}`)
	if err := p.Init(context.Background(), h); err != nil {
		t.Fatalf("Init: %v", err)
	}

	exec, _ := plugin.FindExecutor(p, "fetch")
	res, err := exec.Fn(context.Background(), agentContext("open example.com"))
	if err != nil {
		t.Fatalf("executor error: %v", err)
	}
	if !res.Success || res.Data != "<html>" {
		t.Fatalf("unexpected result %+v", res)
	}
	if caller.lastName != "fetch" || caller.lastArgs["url"] != "https://example.com" {
		t.Errorf("unexpected call %s %v", caller.lastName, caller.lastArgs)
	}
	prompt := provider.Prompts()[0]
	if !strings.Contains(prompt, "open example.com") || !strings.Contains(prompt, `"url"`) {
		t.Errorf("prompt must carry the chain and the argument schema: %s", prompt)
	}
}

func TestToolActionWithoutParameters(t *testing.T) {
	caller := &stubCaller{tools: []mcp.Tool{{Name: "ping"}}, result: textResult("pong")}
	p := New("util", caller)
	h, provider := newHandle(t)
	if err := p.Init(context.Background(), h); err != nil {
		t.Fatalf("Init: %v", err)
	}

	exec, _ := plugin.FindExecutor(p, "ping")
	res, err := exec.Fn(context.Background(), agentContext("ping"))
	if err != nil || !res.Success || res.Data != "pong" {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
	if provider.Calls() != 0 {
		t.Errorf("tools without parameters must not call the model")
	}
}

func TestToolActionFailures(t *testing.T) {
	tests := []struct {
		name     string
		response string
		result   *mcp.CallToolResult
		err      error
		wantErr  bool
		contains string
	}{
		{"missing required argument", `{"link": "x"}`, textResult("unused"), nil, false, `missing required argument "url"`},
		{"tool reports error", `{"url": "x"}`, &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "404"}}}, nil, false, "404"},
		{"transport error", `{"url": "x"}`, nil, stderrors.New("broken pipe"), true, "broken pipe"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			caller := &stubCaller{tools: []mcp.Tool{fetchTool}, result: tc.result, err: tc.err}
			p := New("web", caller)
			h, _ := newHandle(t, tc.response)
			if err := p.Init(context.Background(), h); err != nil {
				t.Fatalf("Init: %v", err)
			}
			exec, _ := plugin.FindExecutor(p, "fetch")
			res, err := exec.Fn(context.Background(), agentContext("fetch"))
			if tc.wantErr {
				if err == nil || !strings.Contains(err.Error(), tc.contains) {
					t.Fatalf("expected error containing %q, got %v", tc.contains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success || !strings.Contains(res.Error, tc.contains) {
				t.Errorf("expected failure containing %q, got %+v", tc.contains, res)
			}
		})
	}
}

func TestStructuredContentIsReturned(t *testing.T) {
	out, err := toolResultToOutput(&mcp.CallToolResult{StructuredContent: map[string]any{"ok": true}})
	if err != nil {
		t.Fatalf("toolResultToOutput: %v", err)
	}
	if m, ok := out.(map[string]any); !ok || m["ok"] != true {
		t.Errorf("unexpected output %v", out)
	}
}

func TestCloseReleasesCaller(t *testing.T) {
	caller := &stubCaller{}
	if err := New("web", caller).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !caller.closed {
		t.Errorf("expected caller to be closed")
	}
}
