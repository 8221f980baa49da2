package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap

	// chatView is the question and answer transcript.
	chatView *chat.View

	// searchView is the retrieval-only search view.
	searchView *search.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	opts := domain.SearchOptions{FanOut: ports.FanOut, TopN: ports.TopN}

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		chatView:    chat.NewView(s, km, ports.Ask),
		searchView:  search.NewView(s, km, ports.Search, opts),
		currentView: messages.ViewChat,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView.WithContext(ctx)
	a.searchView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("druginfo - 의약품 상담"),
		a.chatView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		keyStr := msg.String()
		if keymap.Matches(keyStr, a.keymap.Quit) {
			return a, tea.Quit
		}
		if keymap.Matches(keyStr, a.keymap.SwitchView) {
			return a, a.switchTo(a.otherView())
		}

		switch a.currentView {
		case messages.ViewChat:
			a.chatView, cmd = a.chatView.Update(msg)
		case messages.ViewSearch:
			a.searchView, cmd = a.searchView.Update(msg)
			a.err = a.searchView.Err()
		}
		return a, cmd

	// Streams keep running while the search view is shown.
	case messages.AnswerFragment, messages.AnswerCompleted, spinner.TickMsg:
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
		return a, cmd

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.ErrorOccurred:
		a.err = msg.Err
		if a.currentView == messages.ViewSearch {
			a.searchView, cmd = a.searchView.Update(msg)
		}
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	switch a.currentView {
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	}
	return a, cmd
}

// otherView returns the view tab switches to.
func (a *App) otherView() messages.ViewType {
	if a.currentView == messages.ViewChat {
		return messages.ViewSearch
	}
	return messages.ViewChat
}

// switchTo activates a view and moves input focus to it.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.currentView = view
	switch view {
	case messages.ViewSearch:
		a.chatView.Blur()
		return a.searchView.Focus()
	default:
		a.currentView = messages.ViewChat
		a.searchView.Blur()
		return a.chatView.Focus()
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewSearch:
		return a.searchView.View()
	default:
		return a.chatView.View()
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.chatView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
}
