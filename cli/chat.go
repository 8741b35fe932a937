// Package cli is the line-oriented terminal shell: a REPL over the dialog
// orchestrator with Markdown rendering for answers.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/sahilm/fuzzy"

	"sova/dialog"
	"sova/model"
	"sova/storage"
)

const (
	conversationID = "cli"
	renderWidth    = 100
)

// Shell is the interactive terminal front end.
type Shell struct {
	orch          *dialog.Orchestrator
	provider      model.Provider
	conversations *storage.ConversationStorage
	settings      *storage.SettingsStorage
	systemPrompt  string

	in  io.Reader
	out io.Writer
}

func NewShell(orch *dialog.Orchestrator, provider model.Provider, conversations *storage.ConversationStorage, settings *storage.SettingsStorage, systemPrompt string, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		orch:          orch,
		provider:      provider,
		conversations: conversations,
		settings:      settings,
		systemPrompt:  systemPrompt,
		in:            in,
		out:           out,
	}
}

// Run reads lines until EOF or /quit.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintf(s.out, "sova (%s). Type /help for commands, /quit to exit.\n", s.provider.GetModel())

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := s.handleCommand(ctx, line); quit {
				return nil
			}
			continue
		}

		s.processTurn(ctx, line)
	}
}

func (s *Shell) processTurn(ctx context.Context, text string) {
	settings, err := s.settings.Load(conversationID)
	if err != nil {
		settings = storage.DefaultSettings()
	}
	if settings.Model != "" && settings.Model != s.provider.GetModel() {
		s.provider.SetModel(settings.Model)
	}

	result, err := s.orch.ProcessTurn(ctx, dialog.TurnRequest{
		ConversationID:     conversationID,
		UserText:           text,
		SystemPrompt:       s.systemPrompt,
		Temperature:        settings.Temperature,
		ToolsEnabled:       settings.ToolsEnabled,
		RetrievalEnabled:   settings.RetrievalEnabled,
		TopK:               settings.TopK,
		RelevanceThreshold: settings.RelevanceThreshold,
	})
	if err != nil {
		var completionErr *dialog.CompletionError
		if errors.As(err, &completionErr) {
			fmt.Fprintf(s.out, "model error: %v\n", err)
			return
		}
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}

	answer := result.Text
	if answer == "" && result.IterationLimitHit {
		answer = "(no answer: tool-call limit reached)"
	}
	fmt.Fprintln(s.out, renderMarkdown(answer, renderWidth))

	for _, src := range result.Sources {
		fmt.Fprintf(s.out, "  source: %s lines %d-%d (%.0f%%)\n",
			src.SourceFile, src.StartLine, src.EndLine, src.Score*100)
	}

	settings.TotalUsage.Add(result.Usage)
	_ = s.settings.Save(conversationID, settings)
}

// handleCommand runs one slash command and reports whether to exit.
func (s *Shell) handleCommand(ctx context.Context, line string) bool {
	cmd, args := splitCommand(line)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Fprintln(s.out, "/clear /stats /temp <v> /threshold <v> /topk <n> /tools /rag /model [name] /quit")

	case "/clear":
		if err := s.conversations.Clear(conversationID); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			break
		}
		fmt.Fprintln(s.out, "conversation cleared")

	case "/stats":
		s.printStats()

	case "/temp":
		s.setFloat(args, 0, 2, func(st *storage.Settings, v float64) { st.Temperature = v })

	case "/threshold":
		s.setFloat(args, 0, 1, func(st *storage.Settings, v float64) { st.RelevanceThreshold = v })

	case "/topk":
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			fmt.Fprintln(s.out, "usage: /topk <positive integer>")
			break
		}
		s.update(func(st *storage.Settings) { st.TopK = n })

	case "/tools":
		s.toggle(args, "tools", func(st *storage.Settings) *bool { return &st.ToolsEnabled })

	case "/rag":
		s.toggle(args, "retrieval", func(st *storage.Settings) *bool { return &st.RetrievalEnabled })

	case "/model":
		s.handleModel(ctx, args)

	default:
		fmt.Fprintln(s.out, "unknown command, /help for the list")
	}
	return false
}

func (s *Shell) printStats() {
	settings, err := s.settings.Load(conversationID)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	count := 0
	if conv, err := s.conversations.Load(conversationID); err == nil && conv != nil {
		count = conv.Len()
	}
	fmt.Fprintf(s.out, "model=%s temp=%.2f threshold=%.2f topk=%d tools=%v rag=%v messages=%d tokens=%d\n",
		s.provider.GetModel(), settings.Temperature, settings.RelevanceThreshold,
		settings.TopK, settings.ToolsEnabled, settings.RetrievalEnabled,
		count, settings.TotalUsage.TotalTokens)
}

func (s *Shell) setFloat(args string, min, max float64, set func(*storage.Settings, float64)) {
	v, err := strconv.ParseFloat(strings.TrimSpace(args), 64)
	if err != nil || v < min || v > max {
		fmt.Fprintf(s.out, "usage: value between %g and %g\n", min, max)
		return
	}
	s.update(func(st *storage.Settings) { set(st, v) })
}

func (s *Shell) toggle(args, name string, field func(*storage.Settings) *bool) {
	s.update(func(st *storage.Settings) {
		target := field(st)
		switch strings.ToLower(strings.TrimSpace(args)) {
		case "on":
			*target = true
		case "off":
			*target = false
		default:
			*target = !*target
		}
		fmt.Fprintf(s.out, "%s: %v\n", name, *target)
	})
}

func (s *Shell) update(mutate func(*storage.Settings)) {
	settings, err := s.settings.Load(conversationID)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	mutate(settings)
	if err := s.settings.Save(conversationID, settings); err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "ok")
}

func (s *Shell) handleModel(ctx context.Context, args string) {
	models, err := s.provider.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}

	if args == "" {
		fmt.Fprintf(s.out, "current: %s\n", s.provider.GetModel())
		for _, m := range models {
			fmt.Fprintf(s.out, "  %s\n", m.Name)
		}
		return
	}

	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	results := fuzzy.Find(args, names)
	if len(results) == 0 {
		fmt.Fprintf(s.out, "no model matches %q\n", args)
		return
	}

	chosen := models[results[0].Index].InternalName
	if chosen == "" {
		chosen = models[results[0].Index].Name
	}
	s.provider.SetModel(chosen)
	s.update(func(st *storage.Settings) { st.Model = chosen })
	fmt.Fprintf(s.out, "switched to %s\n", chosen)
}

func splitCommand(text string) (string, string) {
	cmd := text
	args := ""
	if i := strings.Index(text, " "); i >= 0 {
		cmd, args = text[:i], strings.TrimSpace(text[i+1:])
	}
	return strings.ToLower(cmd), args
}

// renderMarkdown renders model output for the terminal. The autolink
// extension is disabled so plain URLs stay selectable text.
func renderMarkdown(content string, width int) string {
	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width, 0)
	doc := p.Parse([]byte(content))
	return strings.TrimRight(string(gomarkdown.Render(doc, r)), "\n")
}
