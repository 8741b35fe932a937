package telegram

import (
	"strings"
	"testing"
)

func TestRenderHTMLBasics(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want []string
	}{
		{
			name: "bold and italic",
			md:   "this is **bold** and *italic*",
			want: []string{"<b>bold</b>", "<i>italic</i>"},
		},
		{
			name: "inline code",
			md:   "run `kubectl get pods` now",
			want: []string{"<code>kubectl get pods</code>"},
		},
		{
			name: "code block",
			md:   "```\nfmt.Println(\"hi\")\n```",
			want: []string{"<pre>fmt.Println(&#34;hi&#34;)</pre>"},
		},
		{
			name: "link",
			md:   "see [docs](https://example.com/a)",
			want: []string{`<a href="https://example.com/a">docs</a>`},
		},
		{
			name: "heading becomes bold",
			md:   "# Title\n\nbody",
			want: []string{"<b>Title</b>"},
		},
		{
			name: "list items get bullets",
			md:   "- one\n- two",
			want: []string{"• one", "• two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderHTML(tt.md)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("RenderHTML(%q) = %q, missing %q", tt.md, got, want)
				}
			}
		})
	}
}

func TestRenderHTMLEscapesMarkup(t *testing.T) {
	got := RenderHTML("compare a < b && c > d")
	if strings.Contains(got, "< b") || strings.Contains(got, "> d") {
		t.Errorf("angle brackets not escaped: %q", got)
	}
	if !strings.Contains(got, "&lt;") || !strings.Contains(got, "&gt;") {
		t.Errorf("expected entities in %q", got)
	}
}

func TestSplitMessageShortTextIsOnePart(t *testing.T) {
	parts := SplitMessage("hello", MessageLimit)
	if len(parts) != 1 || parts[0] != "hello" {
		t.Errorf("unexpected parts %v", parts)
	}
}

func TestSplitMessagePrefersLineBreaks(t *testing.T) {
	text := strings.Repeat("x", 60) + "\n" + strings.Repeat("y", 60)
	parts := SplitMessage(text, 100)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if !strings.HasSuffix(parts[0], "x") || !strings.HasPrefix(parts[1], "y") {
		t.Errorf("split did not happen at the newline: %q / %q", parts[0], parts[1])
	}
}

func TestSplitMessageRespectsLimit(t *testing.T) {
	text := strings.Repeat("word ", 2000)
	for _, part := range SplitMessage(text, 500) {
		if len(part) > 500 {
			t.Fatalf("part exceeds limit: %d bytes", len(part))
		}
	}
}

func TestSplitMessageNeverSplitsRunes(t *testing.T) {
	// Cyrillic text with no spaces forces hard cuts.
	text := strings.Repeat("привет", 100)
	for _, part := range SplitMessage(text, 101) {
		if !strings.HasPrefix(part, "п") {
			t.Fatalf("part starts mid-rune: %q", part[:4])
		}
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in       string
		wantCmd  string
		wantArgs string
	}{
		{"/help", "/help", ""},
		{"/temp 0.5", "/temp", "0.5"},
		{"/search foo bar", "/search", "foo bar"},
		{"/clear@sova_bot", "/clear", ""},
		{"/TOPK 5", "/topk", "5"},
	}
	for _, tt := range tests {
		cmd, args := splitCommand(tt.in)
		if cmd != tt.wantCmd || args != tt.wantArgs {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.in, cmd, args, tt.wantCmd, tt.wantArgs)
		}
	}
}
