package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/adventure-engine/internal/game"
	"github.com/jwebster45206/adventure-engine/pkg/chat"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

const (
	OracleName      = "Oracle"
	PlaceHolderText = "Act, pick a number, or /ask the oracle..."
	ContinueItem    = "Continue journey"
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config        *ConsoleConfig
	api           *apiClient
	session       *game.Snapshot
	storyViewport viewport.Model
	metaViewport  viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int
	err           error
	notice        string
	loading       bool
	askingOracle  bool

	// Genre selection state
	showGenreModal bool
	genres         []string
	selectedGenre  int
	loadingGenres  bool
	// hasSave offers ContinueItem above the genres.
	hasSave bool

	showQuitModal bool

	progressTick int
}

type sessionCreatedMsg struct {
	session *game.Snapshot
	hasSave bool
	err     error
}

type genresLoadedMsg struct {
	genres []string
	err    error
}

// sessionMsg carries the session after any call that returns a snapshot.
type sessionMsg struct {
	session *game.Snapshot
	notice  string
	saved   bool
	err     error
}

type oracleMsg struct {
	resp *chat.OracleResponse
	err  error
}

type progressTickMsg struct{}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	oracleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	threatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // red
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

func NewConsoleUI(cfg *ConsoleConfig, api *apiClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:         cfg,
		api:            api,
		textarea:       ta,
		storyViewport:  storyVp,
		metaViewport:   viewport.New(20, 20),
		showGenreModal: true,
		loadingGenres:  true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.loadGenres(), m.openSession())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(sessionCreatedMsg); ok {
		m.applyCreated(msg)
		return m, nil
	}
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showGenreModal {
		return m.updateGenreModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.storyViewport, vpCmd = m.storyViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			return m.handleInput(input)
		}

	case sessionMsg:
		m.loading = false
		m.applySession(msg)
		m.refresh()
		return m, nil

	case oracleMsg:
		m.askingOracle = false
		if msg.err != nil {
			m.err = msg.err
		} else if m.session != nil {
			m.session.ChatMessages = msg.resp.ChatHistory
		}
		m.refresh()
		return m, nil

	case progressTickMsg:
		if m.loading || m.askingOracle {
			m.progressTick++
			m.refresh()
			return m, progressTick()
		}
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.storyViewport, vpCmd = m.storyViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// handleInput routes a line of input: slash commands, a choice number, or a
// free-text action.
func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	m.err = nil
	m.notice = ""

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}
	if m.loading {
		m.notice = "Wait for the current turn to finish."
		m.refresh()
		return m, nil
	}
	if m.session == nil || !m.session.Phase.AcceptsActions() {
		m.notice = "No action can be taken right now. Try /restart."
		m.refresh()
		return m, nil
	}

	m.loading = true
	m.progressTick = 0
	id := m.session.ID
	m.refresh()

	if n, err := strconv.Atoi(input); err == nil {
		return m, tea.Batch(m.call(func(ctx context.Context) (*game.Snapshot, error) {
			return m.api.submitChoice(ctx, id, n-1)
		}, ""), progressTick())
	}
	return m, tea.Batch(m.call(func(ctx context.Context) (*game.Snapshot, error) {
		return m.api.submitAction(ctx, id, input)
	}, ""), progressTick())
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	if m.session == nil {
		return m, nil
	}
	id := m.session.ID

	switch strings.ToLower(name) {
	case "/help":
		m.notice = helpText
	case "/ask":
		if arg == "" {
			m.notice = "Usage: /ask <question>"
			break
		}
		if m.askingOracle {
			m.notice = "The oracle is still answering."
			break
		}
		m.askingOracle = true
		m.session.ChatMessages = append(m.session.ChatMessages, chat.UserMessage(arg))
		m.refresh()
		return m, tea.Batch(m.ask(id, arg), progressTick())
	case "/save":
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.api.save(ctx, id); err != nil {
				return sessionMsg{err: err}
			}
			return sessionMsg{notice: "Game saved.", saved: true}
		}
	case "/load":
		return m, m.call(func(ctx context.Context) (*game.Snapshot, error) {
			return m.api.load(ctx, id)
		}, "Game loaded.")
	case "/restart":
		m.showGenreModal = true
		m.loading = false
		return m, tea.Batch(m.call(func(ctx context.Context) (*game.Snapshot, error) {
			return m.api.restart(ctx, id)
		}, ""), m.loadGenres())
	case "/copy":
		if m.session.GameData == nil || m.session.GameData.CurrentTurn == nil {
			m.notice = "Nothing to copy yet."
			break
		}
		if err := clipboard.WriteAll(m.session.GameData.CurrentTurn.Story); err != nil {
			m.err = fmt.Errorf("clipboard: %w", err)
			break
		}
		m.notice = "Story copied to clipboard."
	case "/image":
		if m.session.GameData == nil || m.session.GameData.CurrentImage == nil {
			m.notice = "No illustration yet."
			break
		}
		if err := clipboard.WriteAll(m.session.GameData.CurrentImage.DataURL()); err != nil {
			m.err = fmt.Errorf("clipboard: %w", err)
			break
		}
		m.notice = "Illustration copied as a data URL. Paste it into a browser to view."
	default:
		m.notice = fmt.Sprintf("Unknown command %s. Type /help.", name)
	}

	m.refresh()
	return m, nil
}

const helpText = `Commands:
• <number> - Take a suggested choice
• <text> - Describe your own action
• /ask <question> - Ask the oracle
• /save, /load - Save or load your game
• /restart - Start a new adventure
• /copy - Copy the story to the clipboard
• /image - Copy the illustration as a data URL
• Ctrl+C - Quit`

func (m *ConsoleUI) applySession(msg sessionMsg) {
	if msg.err != nil {
		m.err = msg.err
		var apiErr *APIError
		if errors.As(msg.err, &apiErr) && apiErr.Session != nil {
			m.session = apiErr.Session
		}
		return
	}
	if msg.session != nil {
		m.session = msg.session
	}
	if msg.saved {
		m.hasSave = true
	}
	m.notice = msg.notice
}

// applyCreated keeps a session already created by startAdventure.
func (m *ConsoleUI) applyCreated(msg sessionCreatedMsg) {
	if msg.err != nil {
		m.err = msg.err
		return
	}
	if m.session != nil || m.loading {
		return
	}
	m.session = msg.session
	m.hasSave = msg.hasSave
	m.selectedGenre = 0
}

func (m *ConsoleUI) layout() {
	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6
	m.storyViewport.Width = storyWidth - 2
	m.storyViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 3
	m.textarea.SetWidth(storyWidth - 4)
}

// refresh re-renders both panels for the current width.
func (m *ConsoleUI) refresh() {
	width := m.storyViewport.Width - 6
	if width < 20 {
		width = 20
	}
	m.storyViewport.SetContent(m.writeStory(width))
	m.storyViewport.GotoBottom()
	if m.session != nil {
		m.metaViewport.SetContent(writeMetadata(m.session))
	}
}

func (m ConsoleUI) writeStory(width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("ADVENTURE ENGINE") + "\n\n")

	s := m.session
	if s != nil && s.GameData != nil && s.GameData.CurrentTurn != nil {
		turn := s.GameData.CurrentTurn
		content.WriteString(locationStyle.Render(turn.LocationName) + "\n")
		content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")
		content.WriteString(wordwrap.String(turn.Story, width) + "\n\n")

		if turn.CombatInfo != nil {
			ci := turn.CombatInfo
			content.WriteString(threatStyle.Render(fmt.Sprintf("⚔ %s  %d/%d", ci.EnemyName, ci.EnemyHP, ci.EnemyMaxHP)) + "\n")
			if ci.LastActionLog != "" {
				content.WriteString(wordwrap.String(ci.LastActionLog, width) + "\n")
			}
			content.WriteString("\n")
		}

		if s.Phase.AcceptsActions() {
			for i, choice := range turn.Choices {
				content.WriteString(userStyle.Render(fmt.Sprintf("%d. ", i+1)) + wordwrap.String(choice, width-4) + "\n")
			}
			content.WriteString("\n")
		}
	}

	if s != nil {
		switch s.Phase {
		case state.PhaseGameOver:
			content.WriteString(threatStyle.Render("YOU HAVE FALLEN. Type /restart to begin again.") + "\n\n")
		case state.PhaseError:
			content.WriteString(errorStyle.Render("The story could not continue: "+s.LastError) + "\n")
			content.WriteString("Type /restart to begin again.\n\n")
		}
	}

	if s != nil && len(s.ChatMessages) > 0 {
		content.WriteString(titleStyle.Render(OracleName) + "\n")
		for _, msg := range s.ChatMessages {
			if msg.Role == chat.ChatRoleUser {
				content.WriteString(userStyle.Render("You: ") + wordwrap.String(msg.Text, width-5) + "\n")
			} else {
				content.WriteString(oracleStyle.Render(OracleName+": ") + wordwrap.String(msg.Text, width-8) + "\n")
			}
		}
		content.WriteString("\n")
	}

	if m.loading || m.askingOracle {
		content.WriteString(m.renderProgressBar() + "\n")
	}
	if m.notice != "" {
		content.WriteString(promptStyle.Render(m.notice) + "\n")
	}
	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	return content.String()
}

func writeMetadata(s *game.Snapshot) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("HERO") + "\n\n")

	content.WriteString("Genre:\n" + s.Genre + "\n\n")
	content.WriteString("Phase:\n" + string(s.Phase) + "\n\n")

	gd := s.GameData
	if gd == nil {
		return content.String()
	}

	st := gd.Stats
	content.WriteString(fmt.Sprintf("HP: %d/%d\n", st.HP, st.MaxHP))
	content.WriteString(fmt.Sprintf("STR %d  AGI %d  INT %d\n", st.Str, st.Agi, st.Int))
	content.WriteString(fmt.Sprintf("Level %d  EXP %d\n\n", st.Level, st.Exp))
	content.WriteString(fmt.Sprintf("Turn: %d\n\n", gd.TurnNumber()))

	if turn := gd.CurrentTurn; turn != nil {
		content.WriteString("Quest:\n" + turn.CurrentQuest + "\n\n")
		content.WriteString(fmt.Sprintf("Threat: %d\n\n", turn.ThreatLevel))
		content.WriteString("Inventory:\n")
		if len(turn.Inventory) == 0 {
			content.WriteString("Empty\n")
		}
		for _, item := range turn.Inventory {
			content.WriteString("• " + item + "\n")
		}
	}
	if gd.CurrentImage != nil {
		content.WriteString("\n" + promptStyle.Render("Illustration ready (/image)") + "\n")
	}
	return content.String()
}

// call runs a snapshot-returning API call under the client timeout.
func (m ConsoleUI) call(fn func(ctx context.Context) (*game.Snapshot, error), notice string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
		defer cancel()
		snap, err := fn(ctx)
		return sessionMsg{session: snap, notice: notice, err: err}
	}
}

func (m ConsoleUI) ask(id, question string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
		defer cancel()
		resp, err := m.api.askOracle(ctx, id, question)
		return oracleMsg{resp, err}
	}
}

func (m ConsoleUI) loadGenres() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		genres, err := m.api.listGenres(ctx)
		return genresLoadedMsg{genres, err}
	}
}

// openSession binds a session to the remembered save key.
func (m ConsoleUI) openSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		snap, hasSave, err := m.api.createSession(ctx, m.config.SaveKey)
		return sessionCreatedMsg{snap, hasSave, err}
	}
}

// menuItems lists the genre modal entries.
func (m ConsoleUI) menuItems() []string {
	if !m.hasSave {
		return m.genres
	}
	return append([]string{ContinueItem}, m.genres...)
}

// startAdventure starts the chosen genre, or loads the save for ContinueItem.
// A session is created first if the one from startup failed.
func (m ConsoleUI) startAdventure(item string) tea.Cmd {
	var id string
	if m.session != nil {
		id = m.session.ID
	}
	resume := m.hasSave && item == ContinueItem
	return m.call(func(ctx context.Context) (*game.Snapshot, error) {
		if id == "" {
			snap, _, err := m.api.createSession(ctx, m.config.SaveKey)
			if err != nil {
				return nil, err
			}
			id = snap.ID
		}
		if resume {
			return m.api.load(ctx, id)
		}
		return m.api.startSession(ctx, id, item, state.Customization{})
	}, "")
}

func (m ConsoleUI) updateGenreModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case genresLoadedMsg:
		m.loadingGenres = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.genres = msg.genres
			m.selectedGenre = 0
		}

	case sessionMsg:
		m.loading = false
		m.applySession(msg)
		if msg.err == nil && m.session != nil && m.session.Phase != state.PhaseStart {
			m.showGenreModal = false
			m.err = nil
			m.layout()
			m.ready = true
			m.refresh()
			m.textarea.Focus()
			return m, textarea.Blink
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		}
		if m.loadingGenres || m.loading {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyUp:
			if m.selectedGenre > 0 {
				m.selectedGenre--
			}
		case tea.KeyDown:
			if m.selectedGenre < len(m.menuItems())-1 {
				m.selectedGenre++
			}
		case tea.KeyEnter:
			items := m.menuItems()
			if len(m.genres) == 0 || m.selectedGenre >= len(items) {
				m.loadingGenres = true
				m.selectedGenre = 0
				m.err = nil
				return m, m.loadGenres()
			}
			m.loading = true
			m.err = nil
			return m, m.startAdventure(items[m.selectedGenre])
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m, tea.Quit
		}
		switch msg.String() {
		case "y", "Y":
			return m, tea.Quit
		case "n", "N", "esc":
			m.showQuitModal = false
			if m.showGenreModal {
				return m, nil
			}
			m.textarea.Focus()
			return m, textarea.Blink
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Unsaved progress will be lost. Use /save first to keep it.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderGenreModal() string {
	var content strings.Builder

	switch {
	case m.loadingGenres:
		content.WriteString(modalTitleStyle.Render("Loading Genres..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(m.err.Error()))
		content.WriteString("\n\n")
		content.WriteString(promptStyle.Render("Enter to retry, Ctrl+C to exit"))
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Creating your hero..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("This can take a while when the model is busy."))
	default:
		content.WriteString(modalTitleStyle.Render("Choose a Genre"))
		content.WriteString("\n\n")
		for i, genre := range m.menuItems() {
			if i == m.selectedGenre {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + genre))
			} else {
				content.WriteString(modalItemStyle.Render("  " + genre))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.width == 0 || m.height == 0 {
		return "\n  Initializing..."
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showGenreModal {
		return m.renderGenreModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.storyViewport.View(),
			separatorStyle.Render(strings.Repeat("─", storyWidth-4)),
			m.textarea.View(),
		),
	)
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(m.metaViewport.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}

// renderProgressBar draws an animated bar while a request is outstanding.
func (m ConsoleUI) renderProgressBar() string {
	usable := m.storyViewport.Width - 6
	if usable > 60 {
		usable = 60
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return loadingStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
