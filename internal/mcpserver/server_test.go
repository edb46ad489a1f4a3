package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	openai "github.com/sashabaranov/go-openai"

	"github.com/fpang/dalle-mcp-server/internal/imagegen"
	"github.com/fpang/dalle-mcp-server/internal/metrics"
	"github.com/fpang/dalle-mcp-server/internal/params"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

type fakeGenerator struct {
	calls  []params.Parameters
	result *imagegen.Result
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, p params.Parameters) (*imagegen.Result, error) {
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &imagegen.Result{
		ID:         "gen-1",
		Parameters: p,
		Images:     []imagegen.Image{{URL: "https://example.invalid/1.png"}},
	}, nil
}

func newTestServer(t *testing.T, gen Generator) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	return New("dalle-mcp", "test", Deps{
		Generator: gen,
		OutputDir: dir,
		Policy:    retention.Policy{Retention: 7 * 24 * time.Hour},
	}), dir
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("first content is %T, want *mcp.TextContent", res.Content[0])
	}
	return text.Text
}

func TestGenerateImage_ValidationErrorIsToolError(t *testing.T) {
	gen := &fakeGenerator{}
	s, _ := newTestServer(t, gen)

	tests := []struct {
		args string
		want string
	}{
		{`{}`, "Invalid prompt:"},
		{`{"prompt": "   "}`, "Invalid prompt:"},
		{`{"prompt": "cat", "size": "256x256"}`, "Invalid size:"},
		{`{"prompt": "cat", "model": "dall-e-2", "quality": "hd"}`, "Invalid quality:"},
		{`{"prompt": "cat", "n": 2}`, "Invalid n:"},
		{`{"prompt": "cat", "n": "many"}`, "Invalid n:"},
		{`{"prompt": "cat", "response_format": "gif"}`, "Invalid response_format:"},
		{`["not", "an", "object"]`, "Invalid body:"},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			res := s.generateImage(context.Background(), json.RawMessage(tt.args))
			if !res.IsError {
				t.Fatal("expected isError result")
			}
			if text := resultText(t, res); !strings.HasPrefix(text, tt.want) {
				t.Errorf("text %q should start with %q", text, tt.want)
			}
		})
	}

	if len(gen.calls) != 0 {
		t.Errorf("generator must not be called for invalid input, got %d calls", len(gen.calls))
	}
}

func TestGenerateImage_NilArguments(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})
	res := s.generateImage(context.Background(), nil)
	if !res.IsError || !strings.HasPrefix(resultText(t, res), "Invalid prompt:") {
		t.Errorf("expected missing prompt error, got %+v", res)
	}
}

func TestGenerateImage_PassesResolvedParameters(t *testing.T) {
	gen := &fakeGenerator{}
	s, _ := newTestServer(t, gen)

	res := s.generateImage(context.Background(), json.RawMessage(`{"prompt":" a lighthouse ","model":"dall-e-2","n":"3","style":"vivid","save":"false"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}

	if len(gen.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(gen.calls))
	}
	p := gen.calls[0]
	if p.Prompt != "a lighthouse" || p.Model != params.ModelDallE2 || p.N != 3 || p.Style != "" {
		t.Errorf("unexpected parameters: %+v", p)
	}
	if p.Save == nil || *p.Save {
		t.Errorf(`save "false" should resolve to false, got %v`, p.Save)
	}

	var out imagegen.Result
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if out.ID != "gen-1" || len(out.Images) != 1 {
		t.Errorf("unexpected result: %+v", out)
	}
}

func TestGenerateImage_Base64BecomesImageContent(t *testing.T) {
	raw := []byte("\x89PNG\r\n\x1a\nfake")
	gen := &fakeGenerator{result: &imagegen.Result{
		ID:     "gen-2",
		Images: []imagegen.Image{{B64JSON: base64.StdEncoding.EncodeToString(raw), RevisedPrompt: "rp"}},
	}}
	s, _ := newTestServer(t, gen)

	res := s.generateImage(context.Background(), json.RawMessage(`{"prompt":"x","response_format":"b64_json"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}
	if len(res.Content) != 2 {
		t.Fatalf("expected text + image content, got %d items", len(res.Content))
	}
	img, ok := res.Content[1].(*mcp.ImageContent)
	if !ok || string(img.Data) != string(raw) || img.MIMEType != "image/png" {
		t.Errorf("unexpected image content: %#v", res.Content[1])
	}
	if strings.Contains(resultText(t, res), "b64_json") {
		t.Error("base64 payload should not be repeated in the JSON text")
	}
	if gen.result.Images[0].B64JSON == "" {
		t.Error("the generator's result must not be mutated")
	}
}

func TestImageMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00"), "image/png"},
		{"jpeg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), "image/jpeg"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"gif", []byte("GIF89a\x01\x00"), "image/gif"},
		{"unknown", []byte("not an image"), "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := imageMIMEType(tt.data); got != tt.want {
				t.Errorf("imageMIMEType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateImage_Base64JPEGKeepsItsType(t *testing.T) {
	raw := []byte("\xff\xd8\xff\xe0\x00\x10JFIF")
	gen := &fakeGenerator{result: &imagegen.Result{
		ID:     "gen-3",
		Images: []imagegen.Image{{B64JSON: base64.StdEncoding.EncodeToString(raw)}},
	}}
	s, _ := newTestServer(t, gen)

	res := s.generateImage(context.Background(), json.RawMessage(`{"prompt":"x","response_format":"b64_json"}`))
	if res.IsError || len(res.Content) != 2 {
		t.Fatalf("unexpected result: %#v", res)
	}
	if img, ok := res.Content[1].(*mcp.ImageContent); !ok || img.MIMEType != "image/jpeg" {
		t.Errorf("unexpected image content: %#v", res.Content[1])
	}
}

func TestGenerateImage_UpstreamErrorIsToolError(t *testing.T) {
	gen := &fakeGenerator{err: &openai.APIError{HTTPStatusCode: 400, Message: "rejected by safety system"}}
	s, _ := newTestServer(t, gen)

	res := s.generateImage(context.Background(), json.RawMessage(`{"prompt":"x"}`))
	if !res.IsError {
		t.Fatal("expected isError result")
	}
	if text := resultText(t, res); text != "Image generation failed: rejected by safety system" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestGenerateImage_NoAPIKey(t *testing.T) {
	s, _ := newTestServer(t, nil)

	res := s.generateImage(context.Background(), json.RawMessage(`{"prompt":"x"}`))
	if !res.IsError || !strings.Contains(resultText(t, res), "API key") {
		t.Errorf("expected missing key error, got %+v", res)
	}

	// Validation still runs first.
	res = s.generateImage(context.Background(), json.RawMessage(`{}`))
	if !strings.HasPrefix(resultText(t, res), "Invalid prompt:") {
		t.Errorf("validation should run before the key check, got %q", resultText(t, res))
	}
}

func TestListModels(t *testing.T) {
	s, _ := newTestServer(t, nil)
	res := s.listModels(context.Background(), nil)

	var out struct {
		Models []params.Capability `json:"models"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(out.Models) != 2 || out.Models[0].Model != params.ModelDallE2 {
		t.Errorf("unexpected models: %+v", out.Models)
	}
}

func writeOld(t *testing.T, dir, name string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestCleanupImages(t *testing.T) {
	s, dir := newTestServer(t, nil)
	writeOld(t, dir, "old.png", 10*24*time.Hour)
	writeOld(t, dir, "new.png", time.Hour)

	res := s.cleanupImages(context.Background(), json.RawMessage(`{"dry_run": true}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}
	var out retention.Result
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if !out.DryRun || out.FilesDeleted != 1 || out.FilesScanned != 2 {
		t.Errorf("unexpected dry run result: %+v", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "old.png")); err != nil {
		t.Error("dry run must not delete")
	}

	res = s.cleanupImages(context.Background(), json.RawMessage(`{"retention_days": 0.01}`))
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if out.FilesDeleted != 2 {
		t.Errorf("retention override should delete both files, got %+v", out)
	}
}

func TestCleanupImages_InvalidArguments(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		args string
		want string
	}{
		{`{"retention_days": -1}`, "Invalid retention_days:"},
		{`{"max_files": -2}`, "Invalid max_files:"},
		{`{"max_files": "ten"}`, "Invalid arguments:"},
	}
	for _, tt := range tests {
		res := s.cleanupImages(context.Background(), json.RawMessage(tt.args))
		if !res.IsError || !strings.HasPrefix(resultText(t, res), tt.want) {
			t.Errorf("%s: got %+v", tt.args, res)
		}
	}
}

func TestImageStats(t *testing.T) {
	s, dir := newTestServer(t, nil)
	writeOld(t, dir, "a.webp", 2*time.Hour)

	res := s.imageStats(context.Background(), nil)
	var out struct {
		Count     int   `json:"count"`
		TotalSize int64 `json:"totalSize"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if out.Count != 1 || out.TotalSize != 5 {
		t.Errorf("unexpected stats: %+v", out)
	}
}

func TestServer_OverInMemoryTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, _ := newTestServer(t, &fakeGenerator{})
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ss, err := s.MCP().Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cs.Close()

	tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"cleanup_images", "generate_image", "image_stats", "list_models"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("tools: got %v, want %v", names, want)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "generate_image",
		Arguments: map[string]any{"prompt": ""},
	})
	if err != nil {
		t.Fatalf("invalid input must not be a protocol error: %v", err)
	}
	if !res.IsError {
		t.Error("expected isError for empty prompt")
	}
}

func TestCall_RecordsOutcome(t *testing.T) {
	s, _ := newTestServer(t, nil)
	res := s.call(context.Background(), "failing", func(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
		return errorResult("boom")
	}, nil)
	if !res.IsError {
		t.Error("call should pass through the tool result")
	}
	if got := metrics.Default.Counter("ToolCalls{Result=error,Tool=failing}"); got < 1 {
		t.Errorf("tool call counter not incremented, got %d", got)
	}
}
