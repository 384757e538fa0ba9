// Package repl implements the interactive voice cloning session.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/dgnsrekt/voxclone/internal/output"
	"github.com/dgnsrekt/voxclone/internal/voice"
)

// ErrNotTerminal is returned when stdin is not a terminal.
var ErrNotTerminal = errors.New("interactive mode requires a terminal")

// Synthesizer writes one synthesized file.
type Synthesizer interface {
	CloneVoice(ctx context.Context, req voice.Request) (*voice.Result, error)
}

// Config configures a session.
type Config struct {
	Cloner   Synthesizer
	Voice    string // reference WAV
	Outputs  *output.Dir
	Language string

	// Play is called after each successful synthesis. Nil disables playback.
	Play func(ctx context.Context, path string) error

	// GlamourStyle selects the help renderer style. Empty means auto.
	GlamourStyle string

	Input  io.Reader
	Output io.Writer
}

// Run starts the session and blocks until the user quits.
func Run(ctx context.Context, cfg Config) error {
	in := cfg.Input
	if in == nil {
		if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
			return ErrNotTerminal
		}
		in = os.Stdin
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	log.Debug("Starting interactive session", "voice", cfg.Voice, "language", cfg.Language)

	p := tea.NewProgram(newModel(ctx, cfg),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const helpMarkdown = `# Commands

| input | action |
|---|---|
| *any text* | generate speech |
| ` + "`quit`, `exit`, `q`" + ` | leave interactive mode |
| ` + "`lang <code>`" + ` | change language, e.g. ` + "`lang es`" + ` |
| ` + "`help`" + ` | show this help |

**Supported languages:** %s
`

type generatedMsg struct {
	result *voice.Result
	err    error
}

type playedMsg struct {
	err error
}

type model struct {
	ctx context.Context
	cfg Config

	input   textinput.Model
	spinner spinner.Model

	counter  int
	language string
	busy     bool
	pending  string
	quitting bool

	// printed keeps every line written above the prompt.
	printed []string

	now func() time.Time
}

func newModel(ctx context.Context, cfg Config) model {
	ti := textinput.New()
	ti.Placeholder = "Type text and press Enter"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	lang, err := voice.ValidateLanguage(cfg.Language)
	if err != nil {
		lang = voice.DefaultLanguage
	}

	m := model{
		ctx:      ctx,
		cfg:      cfg,
		input:    ti,
		spinner:  sp,
		counter:  1,
		language: lang,
		now:      time.Now,
	}
	m.input.Prompt = m.prompt()
	return m
}

func (m model) prompt() string {
	return fmt.Sprintf("[%d] (%s) > ", m.counter, m.language)
}

func (m model) Init() tea.Cmd {
	banner := titleStyle.Render("Interactive Voice Cloning Mode") + "\n" +
		subtleStyle.Render("Voice: "+filepath.Base(m.cfg.Voice)+"  Type 'help' for commands.")
	return tea.Batch(textinput.Blink, tea.Println(banner))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m.quit()
		case "enter":
			if m.busy {
				return m, nil
			}
			return m.submit()
		}
		if m.busy {
			return m, nil
		}

	case generatedMsg:
		if msg.err != nil {
			m.busy = false
			printed := m.println(errStyle.Render("Error: " + msg.err.Error()))
			if hint := errorHint(msg.err); hint != "" {
				printed = tea.Sequence(printed, m.println(subtleStyle.Render(hint)))
			}
			return m, printed
		}
		saved := m.println(okStyle.Render(fmt.Sprintf("Saved: %s (%s)",
			filepath.Base(msg.result.Path), humanize.Bytes(uint64(msg.result.Size))))) //nolint:gosec
		m.counter++
		m.input.Prompt = m.prompt()
		if m.cfg.Play == nil {
			m.busy = false
			return m, saved
		}
		m.pending = "Playing"
		return m, tea.Sequence(saved, m.play(msg.result.Path))

	case playedMsg:
		m.busy = false
		m.pending = ""
		if msg.err != nil {
			log.Debug("Playback failed", "err", msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return m, nil
	}

	echo := m.println(subtleStyle.Render(m.prompt()) + line)
	lower := strings.ToLower(line)

	switch {
	case lower == "quit" || lower == "exit" || lower == "q":
		qm, cmd := m.quit()
		return qm, tea.Sequence(echo, cmd)

	case lower == "help":
		return m, tea.Sequence(echo, m.println(m.help()))

	case lower == "lang" || strings.HasPrefix(lower, "lang "):
		fields := strings.Fields(lower)
		if len(fields) < 2 {
			return m, tea.Sequence(echo, m.println(errStyle.Render("Usage: lang <code>")))
		}
		lang, err := voice.ValidateLanguage(fields[1])
		if err != nil {
			return m, tea.Sequence(echo, m.println(
				errStyle.Render("Unsupported language: "+fields[1])+"\n"+
					subtleStyle.Render("  Supported: "+strings.Join(voice.SupportedLanguages(), ", "))))
		}
		m.language = lang
		m.input.Prompt = m.prompt()
		return m, tea.Sequence(echo, m.println(okStyle.Render("Language changed to: "+lang)))
	}

	m.busy = true
	m.pending = "Generating"
	return m, tea.Batch(echo, m.generate(line), m.spinner.Tick)
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Sequence(m.println("Goodbye!"), tea.Quit)
}

func (m *model) println(s string) tea.Cmd {
	m.printed = append(m.printed, s)
	return tea.Println(s)
}

// errorHint suggests what to do after a failed synthesis.
func errorHint(err error) string {
	var ce *voice.CloneError
	if !errors.As(err, &ce) {
		return ""
	}
	switch {
	case ce.IsFatal():
		return "The XTTS server cannot serve this request. Check it with: voxclone health"
	case ce.IsRetryable():
		return "The XTTS server may be busy. Try the same text again."
	default:
		return ""
	}
}

func (m model) help() string {
	md := fmt.Sprintf(helpMarkdown, strings.Join(voice.SupportedLanguages(), ", "))

	style := m.cfg.GlamourStyle
	if style == "" {
		style = styles.AutoStyle
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func (m model) generate(text string) tea.Cmd {
	ctx, cfg, lang := m.ctx, m.cfg, m.language
	name := output.InteractiveName(m.now(), m.counter)

	return func() tea.Msg {
		path, err := cfg.Outputs.Next(name)
		if err != nil {
			return generatedMsg{err: err}
		}
		res, err := cfg.Cloner.CloneVoice(ctx, voice.Request{
			Text:      text,
			Reference: cfg.Voice,
			Output:    path,
			Language:  lang,
		})
		if err != nil {
			cfg.Outputs.Discard(path)
		}
		return generatedMsg{result: res, err: err}
	}
}

func (m model) play(path string) tea.Cmd {
	ctx, play := m.ctx, m.cfg.Play
	return func() tea.Msg {
		return playedMsg{err: play(ctx, path)}
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if m.busy {
		return m.spinner.View() + " " + m.pending + "..."
	}
	return m.input.View()
}
