// Package search is the retrieval-only view: it shows the ranked passages
// a question would be answered from, without generating an answer.
package search

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
)

type mode int

const (
	modeQuery mode = iota
	modeResults
)

// View pairs a query input with the result list and the selected passage.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.Input
	list      *list.ResultList
	statusbar *status.Bar

	searchService driving.SearchService
	opts          domain.SearchOptions
	ctx           context.Context

	mode mode
	seq  int
	err  error

	width  int
	height int
	ready  bool
}

// NewView creates the search view. opts carries the fan-out and top-N
// used for every query.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	searchService driving.SearchService,
	opts domain.SearchOptions,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	v := &View{
		styles:        s,
		keymap:        km,
		input:         input.New(s, "Search:", "제품명, 성분, 증상..."),
		list:          list.NewResultList(s),
		statusbar:     status.NewBar(s),
		searchService: searchService,
		opts:          opts,
		ctx:           context.Background(),
		width:         80,
		height:        24,
	}
	v.enterQueryMode()
	return v
}

// WithContext sets the context searches run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init starts the input cursor.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.mode == modeQuery {
			return v.updateQuery(msg)
		}
		v.updateResults(msg)
		return v, nil

	case messages.SearchCompleted:
		if msg.Seq == v.seq {
			v.showResults(msg)
		}
		return v, nil

	case messages.ErrorOccurred:
		v.fail(msg.Err)
		return v, nil
	}

	var inputCmd, listCmd tea.Cmd
	v.input, inputCmd = v.input.Update(msg)
	v.list, listCmd = v.list.Update(msg)
	return v, tea.Batch(inputCmd, listCmd)
}

func (v *View) updateQuery(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	query := strings.TrimSpace(v.input.Value())
	if query == "" {
		return v, nil
	}

	v.err = nil
	v.seq++
	v.mode = modeResults
	v.input.Blur()
	v.statusbar.SetState(status.StateSearching)
	v.statusbar.SetBindings(v.keymap.ResultsHelp())
	return v, v.search(v.seq, query)
}

func (v *View) updateResults(msg tea.KeyMsg) {
	key := msg.String()
	switch {
	case keymap.Matches(key, v.keymap.Up):
		v.list.MoveUp()
	case keymap.Matches(key, v.keymap.Down):
		v.list.MoveDown()
	case keymap.Matches(key, v.keymap.NewSearch), keymap.Matches(key, v.keymap.Cancel):
		v.input.SetValue("")
		v.enterQueryMode()
	}
}

func (v *View) enterQueryMode() {
	v.mode = modeQuery
	v.input.Focus()
	v.statusbar.SetBindings(v.keymap.SearchHelp())
}

// search runs query in the background and reports back with seq.
func (v *View) search(seq int, query string) tea.Cmd {
	svc, ctx, opts := v.searchService, v.ctx, v.opts
	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}
		results, err := svc.Search(ctx, query, opts)
		return messages.SearchCompleted{Seq: seq, Results: results, Err: err}
	}
}

func (v *View) showResults(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.fail(msg.Err)
		return
	}
	v.err = nil
	v.list.SetResults(msg.Results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetCount(len(msg.Results))
	v.mode = modeResults
	v.input.Blur()
}

func (v *View) fail(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the header, input, results, selected passage and status bar.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	parts := []string{
		v.styles.Title.Render("druginfo") + "  " + v.styles.Subtitle.Render("문서 검색"),
		"",
		v.input.View(),
		"",
	}
	if v.err != nil {
		parts = append(parts, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	parts = append(parts, v.list.View())
	if passage := v.renderPassage(); passage != "" {
		parts = append(parts, "", passage)
	}
	parts = append(parts, "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderPassage shows the full text of the selected result with its
// product and company.
func (v *View) renderPassage() string {
	if v.mode != modeResults {
		return ""
	}
	r := v.list.SelectedResult()
	if r == nil {
		return ""
	}

	lines := []string{v.styles.Subtitle.Render(r.ProductName())}
	if company := r.Metadata[domain.MetaCompany]; company != "" {
		lines = append(lines, v.styles.Muted.Render(company))
	}
	text := lipgloss.NewStyle().Width(max(v.width-4, 20)).Render(strings.TrimSpace(r.Content))
	lines = append(lines, v.styles.Normal.Render(text))

	return v.styles.Border.Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// SetDimensions splits the height between the list and the passage.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.ready = true
	v.input.SetWidth(width)
	v.list.SetDimensions(width, (height-10)/2)
	v.statusbar.SetWidth(width)
}

func (v *View) Width() int  { return v.width }
func (v *View) Height() int { return v.height }
func (v *View) Ready() bool { return v.ready }

// Query returns the text in the input.
func (v *View) Query() string { return v.input.Value() }

// SetQuery replaces the text in the input.
func (v *View) SetQuery(query string) { v.input.SetValue(query) }

// Results returns the results of the last completed search.
func (v *View) Results() []domain.RetrievalResult { return v.list.Results() }

// SelectedIndex returns the cursor position in the result list.
func (v *View) SelectedIndex() int { return v.list.Selected() }

// SelectedResult returns the result under the cursor, or nil.
func (v *View) SelectedResult() *domain.RetrievalResult { return v.list.SelectedResult() }

// Err returns the last search error.
func (v *View) Err() error { return v.err }

// ClearError clears the last error.
func (v *View) ClearError() {
	v.err = nil
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
}

// Reset returns to an empty query with no results.
func (v *View) Reset() {
	v.input.SetValue("")
	v.list.SetResults(nil)
	v.ClearError()
	v.enterQueryMode()
}

// Focus focuses the input when the view is waiting for a query.
func (v *View) Focus() tea.Cmd {
	if v.mode != modeQuery {
		return nil
	}
	return v.input.Focus()
}

// Blur removes focus from the input.
func (v *View) Blur() { v.input.Blur() }

// InputFocused reports whether keys go to the query input.
func (v *View) InputFocused() bool { return v.mode == modeQuery }
