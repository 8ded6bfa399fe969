package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/policychat"
	"github.com/fwojciec/policychat/sanitize"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"
)

var _ tea.Model = Model{}

const defaultTitle = "policychat"

// Model is the Bubble Tea model for the policy chat TUI.
type Model struct {
	// Input is the prompt field. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable conversation area. Exported for test access.
	Viewport viewport.Model

	streamer   policychat.Streamer
	transcript *policychat.Transcript
	userID     int64
	theme      policychat.Theme
	styles     Styles
	logger     *zap.Logger
	onTurn     func(policychat.Transcript) error
	now        func() time.Time
	spinner    spinner.Model

	blocks     []Block
	blockFocus int // index of the focused Collapsible block (-1 = none)

	// Per-turn rendering state. answer is the block receiving text deltas;
	// it is reset when a tool call arrives so later text renders below it.
	answer    *AnswerBlock
	toolCalls map[string]*ToolCallBlock
	assembler *policychat.Assembler
	prompt    string

	running bool
	expired bool
	cancel  context.CancelFunc
	chunkCh chan policychat.Chunk
	doneCh  chan error
	err     error
	ready   bool
}

// Option configures a Model.
type Option func(*Model)

// WithUserID sets the user ID sent with every request.
func WithUserID(id int64) Option {
	return func(m *Model) { m.userID = id }
}

// WithTheme sets the color theme.
func WithTheme(t policychat.Theme) Option {
	return func(m *Model) {
		m.theme = t
		m.styles = NewStyles(t)
	}
}

// WithLogger sets the logger. Protocol violations are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// WithTurnHandler sets a callback invoked with the updated transcript after
// every turn, typically to persist it.
func WithTurnHandler(h func(policychat.Transcript) error) Option {
	return func(m *Model) { m.onTurn = h }
}

// WithClock sets the time source used to timestamp exchanges.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// New creates a TUI Model that sends prompts through s and records
// exchanges in t. A nil transcript starts an empty conversation.
func New(s policychat.Streamer, t *policychat.Transcript, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about a policy..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	if t == nil {
		t = &policychat.Transcript{}
	}
	theme := policychat.DefaultTheme()
	m := Model{
		Input:      ti,
		streamer:   s,
		transcript: t,
		theme:      theme,
		styles:     NewStyles(theme),
		logger:     zap.NewNop(),
		now:        time.Now,
		spinner:    sp,
		blockFocus: -1,
		toolCalls:  make(map[string]*ToolCallBlock),
	}
	for _, o := range opts {
		o(&m)
	}
	m.spinner.Style = m.styles.Accent
	return m
}

// Running returns whether a turn is streaming.
func (m Model) Running() bool { return m.running }

// Expired returns whether the session expired.
func (m Model) Expired() bool { return m.expired }

// Err returns the last error, if any.
func (m Model) Err() error { return m.err }

// Transcript returns a copy of the conversation record.
func (m Model) Transcript() policychat.Transcript { return *m.transcript }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ChunkMsg:
		m = m.applyChunk(msg.Chunk)
		m.refresh()
		if m.chunkCh != nil {
			return m, listenForChunk(m.chunkCh, m.doneCh)
		}
		return m, nil

	case TurnDoneMsg:
		return m.finishTurn(msg.Err)

	case SessionExpiredMsg:
		m.expired = true
		m.Input.Blur()
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.running && !m.expired {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	// header, status and input lines plus the newlines between sections
	vpHeight := msg.Height - 3 - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m = m.renderTranscript()
		m.refresh()
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
		m.Viewport.SetContent(m.renderContent())
	}
	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEsc:
		if !m.running {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyEnter:
		if m.running || m.expired {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submit(text)

	case tea.KeyTab:
		if !m.running && m.blockFocus >= 0 {
			block, cmd := m.blocks[m.blockFocus].Update(ToggleMsg{})
			m.blocks[m.blockFocus] = block
			m.Viewport.SetContent(m.renderContent())
			return m, cmd
		}
		return m, nil

	case tea.KeyShiftTab:
		if !m.running {
			m = m.cycleFocusPrev()
			m.Viewport.SetContent(m.renderContent())
		}
		return m, nil
	}

	// Rune keys go only to the input so that letters like j/k type
	// instead of scrolling.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if msg.Type != tea.KeyRunes {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	if !m.running && !m.expired {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil
	m.prompt = text

	m.blocks = append(m.blocks, NewPromptBlock(text, m.now(), m.styles))
	m.answer = nil
	m.toolCalls = make(map[string]*ToolCallBlock)
	logger := m.logger
	m.assembler = policychat.NewAssembler(policychat.WithViolationHandler(func(err error) {
		logger.Debug("dropped chunk", zap.Error(err))
	}))
	m.refresh()

	req := policychat.ChatRequest{
		UserID:  m.userID,
		Message: text,
		ChatID:  m.transcript.ChatIDPtr(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.chunkCh = make(chan policychat.Chunk, 64)
	m.doneCh = make(chan error, 1)
	m.running = true

	return m, tea.Batch(
		startStream(ctx, m.streamer, req, m.chunkCh, m.doneCh),
		listenForChunk(m.chunkCh, m.doneCh),
		m.spinner.Tick,
	)
}

// applyChunk folds c into the turn and updates the blocks. Chunks the
// assembler drops are not rendered.
func (m Model) applyChunk(c policychat.Chunk) Model {
	if m.assembler == nil {
		return m
	}
	if err := m.assembler.Apply(c); err != nil {
		return m
	}
	switch v := c.(type) {
	case policychat.ChunkChatInfo:
		if m.transcript.Title == "" {
			m.transcript.Title = sanitize.Line(v.Title)
		}
	case policychat.ChunkTextDelta:
		if m.answer == nil {
			m.answer = NewAnswerBlock(m.theme, m.styles)
			m.blocks = append(m.blocks, m.answer)
		}
		m.answer.Append(v.Delta)
	case policychat.ChunkToolCall:
		if b, ok := m.toolCalls[v.ID]; ok {
			b.call.Name = v.Name
			b.call.Input = v.Input
			break
		}
		b := NewToolCallBlock(policychat.ToolCall{ID: v.ID, Name: v.Name, Input: v.Input}, m.styles)
		m.toolCalls[v.ID] = b
		m.blocks = append(m.blocks, b)
		m.answer = nil
		m = m.updateBlockFocus()
	case policychat.ChunkToolOutput:
		if b, ok := m.toolCalls[v.ToolCallID]; ok {
			turn := m.assembler.Turn()
			b.SetOutput(turn.ToolCalls[v.ToolCallID].Output)
		}
	case policychat.ChunkError:
		m.blocks = append(m.blocks, NewErrorBlock(v.Message, v.Recoverable, m.styles))
	}
	return m
}

func (m Model) finishTurn(err error) (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
	m.cancel = nil
	m.chunkCh = nil
	m.doneCh = nil

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		m.err = err
	case m.assembler != nil:
		turn := m.assembler.Turn()
		if turn.Terminal == policychat.TurnComplete {
			if refs := turn.References(); len(refs) > 0 {
				m.blocks = append(m.blocks, NewSourcesBlock(refs, m.styles))
			}
		}
		m.transcript.Record(m.prompt, turn, m.now())
		if m.onTurn != nil {
			if err := m.onTurn(*m.transcript); err != nil {
				m.logger.Warn("failed to save transcript", zap.Error(err))
				m.err = fmt.Errorf("save transcript: %w", err)
			}
		}
	}
	m.assembler = nil
	m.answer = nil
	m = m.updateBlockFocus()
	m.refresh()
	if m.expired {
		return m, nil
	}
	return m, m.Input.Focus()
}

// renderTranscript creates blocks for previously recorded exchanges.
func (m Model) renderTranscript() Model {
	for _, ex := range m.transcript.Exchanges {
		m.blocks = append(m.blocks, NewPromptBlock(ex.Prompt, ex.Timestamp, m.styles))
		for _, call := range ex.Turn.Calls() {
			b := NewToolCallBlock(call, m.styles)
			m.toolCalls[call.ID] = b
			m.blocks = append(m.blocks, b)
		}
		if ex.Turn.Text != "" {
			b := NewAnswerBlock(m.theme, m.styles)
			b.Append(ex.Turn.Text)
			m.blocks = append(m.blocks, b)
		}
		for _, w := range ex.Turn.Warnings {
			m.blocks = append(m.blocks, NewErrorBlock(w, true, m.styles))
		}
		if ex.Turn.Terminal == policychat.TurnError {
			m.blocks = append(m.blocks, NewErrorBlock(ex.Turn.Error, false, m.styles))
		}
	}
	m.toolCalls = make(map[string]*ToolCallBlock)
	return m.updateBlockFocus()
}

func (m *Model) refresh() {
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
}

func (m Model) renderContent() string {
	return renderBlocks(m.blocks, m.Viewport.Width)
}

// updateBlockFocus focuses the last collapsible block. Only the focused
// block responds to Tab; Shift+Tab moves focus to the previous one.
func (m Model) updateBlockFocus() Model {
	m.blockFocus = -1
	for i := len(m.blocks) - 1; i >= 0; i-- {
		if _, ok := m.blocks[i].(Collapsible); ok {
			m.blockFocus = i
			return m
		}
	}
	return m
}

func (m Model) cycleFocusPrev() Model {
	n := len(m.blocks)
	start := m.blockFocus - 1
	if start < 0 {
		start = n - 1
	}
	for i := 0; i < n; i++ {
		idx := (start - i + n) % n
		if _, ok := m.blocks[idx].(Collapsible); ok {
			m.blockFocus = idx
			return m
		}
	}
	m.blockFocus = -1
	return m
}

func (m Model) header() string {
	title := m.transcript.Title
	if title == "" {
		title = defaultTitle
	}
	width := m.Viewport.Width
	if width <= 0 {
		width = 80
	}
	return m.styles.Title.Render(runewidth.Truncate(title, width, "…"))
}

func (m Model) statusLine() string {
	switch {
	case m.expired:
		return m.styles.Error.Render("Session expired. Log in again and restart to continue.")
	case m.err != nil:
		return m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	case m.running:
		return m.spinner.View() + m.styles.Muted.Render(" Thinking... Ctrl+C to stop")
	default:
		return m.styles.Muted.Render("Enter to send, Tab to expand lookups, Ctrl+C to quit")
	}
}

// startStream runs one turn in a goroutine and signals completion on done.
func startStream(ctx context.Context, s policychat.Streamer, req policychat.ChatRequest, ch chan<- policychat.Chunk, done chan<- error) tea.Cmd {
	return func() tea.Msg {
		err := policychat.StreamChatResponse(ctx, s, req, func(c policychat.Chunk) {
			select {
			case ch <- c:
			case <-ctx.Done():
			}
		})
		close(ch)
		done <- err
		return nil
	}
}

// listenForChunk waits for the next chunk. When the channel closes it reads
// the stream error from done and returns TurnDoneMsg.
func listenForChunk(ch <-chan policychat.Chunk, done <-chan error) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return TurnDoneMsg{Err: <-done}
		}
		return ChunkMsg{Chunk: c}
	}
}
