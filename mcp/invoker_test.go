package mcp

import (
	"context"
	"encoding/json"
	"testing"
)

func TestSuccessResultEscapesOutput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "plain text", text: "72 degrees and sunny"},
		{name: "double quotes", text: `the file contains "quoted" strings`},
		{name: "backslashes", text: `C:\Users\test\file.txt`},
		{name: "newlines", text: "line one\nline two\nline three"},
		{name: "mixed", text: "a \"b\"\n\\c\td"},
		{name: "empty", text: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := successResult(tt.text)
			if !res.Success {
				t.Fatal("expected success")
			}

			var envelope map[string]string
			if err := json.Unmarshal([]byte(res.Output), &envelope); err != nil {
				t.Fatalf("output is not valid JSON: %v\noutput: %s", err, res.Output)
			}
			if envelope["result"] != tt.text {
				t.Errorf("result round trip mismatch: got %q, want %q", envelope["result"], tt.text)
			}
		})
	}
}

func TestErrorResultIsJSON(t *testing.T) {
	res := errorResult(`tool failed: "bad" input`)
	if res.Success {
		t.Fatal("expected failure")
	}

	var envelope map[string]string
	if err := json.Unmarshal([]byte(res.Output), &envelope); err != nil {
		t.Fatalf("error output is not valid JSON: %v", err)
	}
	if envelope["error"] == "" {
		t.Error("expected error key in envelope")
	}
}

func TestExecuteUnknownServer(t *testing.T) {
	inv := NewInvoker(NewProcessManager())

	res := inv.Execute(context.Background(), "ghost.get_weather", map[string]any{"city": "Moscow"})
	if res.Success {
		t.Fatal("expected failure for unknown server")
	}

	var envelope map[string]string
	if err := json.Unmarshal([]byte(res.Output), &envelope); err != nil {
		t.Fatalf("failure output is not valid JSON: %v", err)
	}
	if envelope["error"] == "" {
		t.Error("expected error message in envelope")
	}
}

func TestExecuteMalformedToolName(t *testing.T) {
	inv := NewInvoker(NewProcessManager())

	for _, name := range []string{"noserver", ".leading", "trailing."} {
		res := inv.Execute(context.Background(), name, nil)
		if res.Success {
			t.Errorf("expected failure for tool name %q", name)
		}
	}
}

func TestParseToolName(t *testing.T) {
	tests := []struct {
		input    string
		serverID string
		toolName string
		wantErr  bool
	}{
		{input: "weather.get_forecast", serverID: "weather", toolName: "get_forecast"},
		{input: "fs.read.file", serverID: "fs", toolName: "read.file"},
		{input: "bare", wantErr: true},
		{input: ".tool", wantErr: true},
		{input: "server.", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		serverID, toolName, err := parseToolName(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseToolName(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseToolName(%q): unexpected error %v", tt.input, err)
			continue
		}
		if serverID != tt.serverID || toolName != tt.toolName {
			t.Errorf("parseToolName(%q) = (%q, %q), want (%q, %q)",
				tt.input, serverID, toolName, tt.serverID, tt.toolName)
		}
	}
}
