package tui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/hylla/dealboard/internal/domain"
)

// Service is the board surface the TUI drives.
type Service interface {
	Board(context.Context) (*domain.Board, error)
	MoveCard(context.Context, domain.MoveRequest) (domain.MoveResult, error)
	ReorderStages(context.Context, []string) error
}

// Model is the Bubble Tea board view.
type Model struct {
	svc   Service
	title string

	// stages is the filtered board in display order.
	board    *domain.Board
	stages   []domain.Stage
	filter   domain.CardFilter
	listView bool

	selectedStage int
	selectedCard  int

	// drop target while a card is picked up. dropIndex is read against the destination
	// stage with the dragged card already removed.
	drag      domain.Drag
	dropStage int
	dropIndex int

	showDetail bool
	markdown   *markdownRenderer

	ready  bool
	width  int
	height int
	status string
	err    error

	help help.Model
	keys keyMap

	copyToClipboard ClipboardFunc

	pendingCardID  string
	pendingStageID string
}

// loadedMsg carries one board read.
type loadedMsg struct {
	board *domain.Board
	err   error
}

// actionMsg carries the outcome of one mutation.
type actionMsg struct {
	err          error
	status       string
	reload       bool
	focusCardID  string
	focusStageID string
}

// NewModel constructs a board model.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:             svc,
		title:           "dealboard",
		status:          "loading...",
		help:            h,
		keys:            newKeyMap(),
		markdown:        &markdownRenderer{},
		copyToClipboard: clipboard.WriteAll,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.board = msg.board
		m.stages = msg.board.FilterStages(m.filter)
		m.applyPendingFocus()
		m.clampSelections()
		if m.status == "" || m.status == "loading..." || m.status == "reloading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.focusCardID != "" {
			m.pendingCardID = msg.focusCardID
		}
		if msg.focusStageID != "" {
			m.pendingStageID = msg.focusStageID
		}
		if msg.reload {
			return m, m.loadData
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

// handleKey dispatches one key press.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	}
	if m.err != nil || len(m.stages) == 0 {
		return m, nil
	}
	if m.showDetail {
		if key.Matches(msg, m.keys.cardInfo, m.keys.cancel) {
			m.showDetail = false
			return m, nil
		}
		if key.Matches(msg, m.keys.copyID) {
			return m.copySelectedCardID()
		}
		return m, nil
	}
	if m.drag.Active() {
		return m.handleDragKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedStage = clamp(m.selectedStage-1, 0, len(m.stages)-1)
		m.clampSelections()
	case key.Matches(msg, m.keys.moveRight):
		m.selectedStage = clamp(m.selectedStage+1, 0, len(m.stages)-1)
		m.clampSelections()
	case key.Matches(msg, m.keys.moveUp):
		m.selectedCard = clamp(m.selectedCard-1, 0, len(m.stages[m.selectedStage].Cards)-1)
	case key.Matches(msg, m.keys.moveDown):
		m.selectedCard = clamp(m.selectedCard+1, 0, len(m.stages[m.selectedStage].Cards)-1)
	case key.Matches(msg, m.keys.pickUp):
		return m.beginDrag()
	case key.Matches(msg, m.keys.drop):
		m.status = "press space to pick up a card first"
	case key.Matches(msg, m.keys.stageLeft):
		return m.moveSelectedStage(-1)
	case key.Matches(msg, m.keys.stageRight):
		return m.moveSelectedStage(1)
	case key.Matches(msg, m.keys.cardInfo):
		if _, _, ok := m.selected(); !ok {
			m.status = "no card selected"
			return m, nil
		}
		m.showDetail = true
	case key.Matches(msg, m.keys.copyID):
		return m.copySelectedCardID()
	case key.Matches(msg, m.keys.filter):
		m.cyclePriorityFilter()
	case key.Matches(msg, m.keys.toggleView):
		m.listView = !m.listView
		if m.listView {
			m.status = "list view"
		} else {
			m.status = "board view"
		}
	}
	return m, nil
}

// priorityFilterCycle is the order the filter key steps through.
var priorityFilterCycle = []domain.Priority{"", domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow}

// cyclePriorityFilter steps to the next priority and re-filters the loaded board.
func (m *Model) cyclePriorityFilter() {
	next := 0
	if idx := slices.Index(priorityFilterCycle, m.filter.Priority); idx >= 0 {
		next = (idx + 1) % len(priorityFilterCycle)
	}
	selectedID := ""
	if card, _, ok := m.selected(); ok {
		selectedID = card.ID
	}
	m.filter.Priority = priorityFilterCycle[next]
	m.stages = m.board.FilterStages(m.filter)
	m.selectedCard = 0
	if selectedID != "" {
		if idx := m.stages[m.selectedStage].IndexOf(selectedID); idx >= 0 {
			m.selectedCard = idx
		}
	}
	m.clampSelections()
	if m.filter.Priority == "" {
		m.status = "showing all deals"
		return
	}
	m.status = fmt.Sprintf("showing %s priority deals", m.filter.Priority)
}

// handleDragKey moves the drop target, drops, or cancels.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.moveLeft):
		m.dropStage = clamp(m.dropStage-1, 0, len(m.stages)-1)
		m.dropIndex = clamp(m.dropIndex, 0, m.dropLimit())
	case key.Matches(msg, m.keys.moveRight):
		m.dropStage = clamp(m.dropStage+1, 0, len(m.stages)-1)
		m.dropIndex = clamp(m.dropIndex, 0, m.dropLimit())
	case key.Matches(msg, m.keys.moveUp):
		m.dropIndex = clamp(m.dropIndex-1, 0, m.dropLimit())
	case key.Matches(msg, m.keys.moveDown):
		m.dropIndex = clamp(m.dropIndex+1, 0, m.dropLimit())
	case key.Matches(msg, m.keys.drop):
		dest := m.stages[m.dropStage]
		req, err := m.drag.Drop(dest.ID, m.dropIndex)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = "moving..."
		return m, m.moveCardCmd(req, dest.Title)
	case key.Matches(msg, m.keys.cancel):
		if err := m.drag.Cancel(); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = "drag cancelled"
	case key.Matches(msg, m.keys.pickUp):
		if err := m.drag.Begin(m.board, m.drag.CardID()); err != nil {
			m.status = err.Error()
		}
	default:
		m.status = "drop with enter or cancel with esc"
	}
	return m, nil
}

// beginDrag picks up the selected card and aims the drop target at its own slot.
func (m Model) beginDrag() (tea.Model, tea.Cmd) {
	card, _, ok := m.selected()
	if !ok {
		m.status = "no card selected"
		return m, nil
	}
	if !m.filter.IsZero() {
		m.status = "clear the priority filter before moving cards"
		return m, nil
	}
	if m.listView {
		m.status = "switch to board view before moving cards"
		return m, nil
	}
	if err := m.drag.Begin(m.board, card.ID); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.dropStage = m.selectedStage
	m.dropIndex = m.drag.Source().Index
	m.status = "dragging " + card.Title
	return m, nil
}

// dropLimit returns the last valid drop index in the target stage.
func (m Model) dropLimit() int {
	if len(m.stages) == 0 {
		return 0
	}
	stage := m.stages[clamp(m.dropStage, 0, len(m.stages)-1)]
	n := len(stage.Cards)
	if stage.IndexOf(m.drag.CardID()) >= 0 {
		n--
	}
	return n
}

// moveCardCmd applies one drop through the service.
func (m Model) moveCardCmd(req domain.MoveRequest, destTitle string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		result, err := svc.MoveCard(context.Background(), req)
		if err != nil {
			if isStaleBoardError(err) {
				return actionMsg{status: "board changed before the drop landed; reloaded", reload: true}
			}
			return actionMsg{err: err}
		}
		if !result.Changed {
			return actionMsg{status: "card left in place", reload: true, focusCardID: req.CardID}
		}
		return actionMsg{
			status:      fmt.Sprintf("moved %s to %s", result.Card.Title, destTitle),
			reload:      true,
			focusCardID: req.CardID,
		}
	}
}

// moveSelectedStage swaps the selected stage with its neighbor.
func (m Model) moveSelectedStage(delta int) (tea.Model, tea.Cmd) {
	order := slices.Clone(m.board.Order())
	from := clamp(m.selectedStage, 0, len(order)-1)
	to := from + delta
	if to < 0 || to >= len(order) {
		m.status = "stage is already at the edge"
		return m, nil
	}
	order[from], order[to] = order[to], order[from]
	stageID, title := m.stages[from].ID, m.stages[from].Title
	svc := m.svc
	m.status = "moving stage..."
	return m, func() tea.Msg {
		if err := svc.ReorderStages(context.Background(), order); err != nil {
			if isStaleBoardError(err) {
				return actionMsg{status: "stages changed underneath; reloaded", reload: true}
			}
			return actionMsg{err: err}
		}
		return actionMsg{status: "moved stage " + title, reload: true, focusStageID: stageID}
	}
}

// copySelectedCardID writes the selected card id to the clipboard.
func (m Model) copySelectedCardID() (tea.Model, tea.Cmd) {
	card, _, ok := m.selected()
	if !ok {
		m.status = "no card selected"
		return m, nil
	}
	if err := m.copyToClipboard(card.ID); err != nil {
		m.status = "copy failed: " + err.Error()
		return m, nil
	}
	m.status = "copied " + card.ID
	return m, nil
}

// isStaleBoardError reports errors caused by acting on an outdated board view.
func isStaleBoardError(err error) bool {
	return errors.Is(err, domain.ErrStaleMove) ||
		errors.Is(err, domain.ErrCardNotFound) ||
		errors.Is(err, domain.ErrStageNotFound) ||
		errors.Is(err, domain.ErrInvalidPermutation)
}

// selected returns the card under the cursor.
func (m Model) selected() (domain.Card, domain.Stage, bool) {
	if len(m.stages) == 0 {
		return domain.Card{}, domain.Stage{}, false
	}
	stage := m.stages[clamp(m.selectedStage, 0, len(m.stages)-1)]
	if len(stage.Cards) == 0 {
		return domain.Card{}, stage, false
	}
	return stage.Cards[clamp(m.selectedCard, 0, len(stage.Cards)-1)], stage, true
}

// applyPendingFocus moves the cursor onto a card or stage named by the last action.
func (m *Model) applyPendingFocus() {
	if id := m.pendingCardID; id != "" {
		m.pendingCardID = ""
		if loc, err := m.board.Locate(id); err == nil {
			if idx, err := m.board.StageIndex(loc.StageID); err == nil && idx < len(m.stages) {
				m.selectedStage = idx
				m.selectedCard = max(0, m.stages[idx].IndexOf(id))
			}
		}
	}
	if id := m.pendingStageID; id != "" {
		m.pendingStageID = ""
		if idx, err := m.board.StageIndex(id); err == nil {
			m.selectedStage = idx
		}
	}
}

// clampSelections keeps the cursor and drop target on the board.
func (m *Model) clampSelections() {
	if len(m.stages) == 0 {
		m.selectedStage, m.selectedCard = 0, 0
		return
	}
	m.selectedStage = clamp(m.selectedStage, 0, len(m.stages)-1)
	m.selectedCard = clamp(m.selectedCard, 0, len(m.stages[m.selectedStage].Cards)-1)
	if m.drag.Active() {
		m.dropStage = clamp(m.dropStage, 0, len(m.stages)-1)
		m.dropIndex = clamp(m.dropIndex, 0, m.dropLimit())
	}
}

// loadData loads required data for the current operation.
func (m Model) loadData() tea.Msg {
	board, err := m.svc.Board(context.Background())
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{board: board}
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render draws the full screen as text.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready || m.board == nil {
		return "loading..."
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	helpStyle := lipgloss.NewStyle().Foreground(muted)
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	summary := m.board.Summary()
	name := summary.Pipeline
	if strings.TrimSpace(name) == "" {
		name = m.title
	}
	header := titleStyle.Render(name) + "  " + fmt.Sprintf(
		"%d deals · %s pipeline · %d hot · %d messages",
		summary.TotalCards,
		formatCents(summary.ValueCents),
		summary.HotLeads,
		summary.Messages,
	)
	if m.filter.Priority != "" {
		header += statusStyle.Render(fmt.Sprintf("  [%s priority · %d shown]", m.filter.Priority, countCards(m.stages)))
	}
	if m.drag.Active() {
		header += statusStyle.Render("  [dragging]")
	}

	body := m.renderColumns(muted, dim)
	if m.listView {
		body = m.renderList(muted)
	}

	sections := []string{header, "", body}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine

	if m.showDetail {
		if overlay := m.renderDetail(helpStyle); overlay != "" {
			overlayHeight := lipgloss.Height(fullContent)
			if m.height > 0 {
				overlayHeight = m.height
			}
			fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
		}
	}
	return fullContent
}

// renderColumns draws one bordered column per stage.
func (m Model) renderColumns(muted, dim color.Color) string {
	colWidth := m.columnWidthFor(m.width)
	colHeight := m.columnHeight()
	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(1, 2).
		MarginRight(1).
		Width(colWidth)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedCardStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	draggedCardStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	dropStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	itemSubStyle := lipgloss.NewStyle().Foreground(muted)

	focusStage := m.selectedStage
	if m.drag.Active() {
		focusStage = m.dropStage
	}

	columnViews := make([]string, 0, len(m.stages))
	for stageIdx, stage := range m.stages {
		accent := stageAccentColor(stage.Color)
		headerLines := []string{
			lipgloss.NewStyle().Bold(true).Foreground(accent).Render(fmt.Sprintf("%s (%d)", stage.Title, stage.Count())),
			itemSubStyle.Render(formatCents(stage.TotalValue())),
		}

		cardLines := make([]string, 0, max(1, len(stage.Cards)*3))
		focusStart, focusEnd := -1, -1
		dropHere := m.drag.Active() && stageIdx == m.dropStage
		placed := false
		remaining := 0
		addDropMarker := func() {
			focusStart = len(cardLines)
			cardLines = append(cardLines, dropStyle.Render("▸ drop here"))
			focusEnd = len(cardLines) - 1
			placed = true
		}

		for cardIdx, card := range stage.Cards {
			dragged := m.drag.Active() && card.ID == m.drag.CardID()
			if dropHere && !dragged && !placed && remaining == m.dropIndex {
				addDropMarker()
			}
			if !dragged {
				remaining++
			}
			selected := !m.drag.Active() && stageIdx == m.selectedStage && cardIdx == m.selectedCard

			prefix := "   "
			switch {
			case dragged:
				prefix = "↕  "
			case selected:
				prefix = "│  "
			}
			title := prefix + truncate(card.Title, max(1, colWidth-10))
			sub := truncate(joinNonEmpty(" · ", card.Company, formatCents(card.ValueCents), string(card.Temperature)), max(1, colWidth-10))
			switch {
			case dragged:
				title = draggedCardStyle.Render(title)
			case selected:
				title = selectedCardStyle.Render(title)
			}

			rowStart := len(cardLines)
			cardLines = append(cardLines, title, prefix+itemSubStyle.Render(sub))
			if cardIdx < len(stage.Cards)-1 {
				cardLines = append(cardLines, "")
			}
			if selected {
				focusStart, focusEnd = rowStart, len(cardLines)-1
			}
		}
		if dropHere && !placed {
			addDropMarker()
		}
		if len(cardLines) == 0 {
			cardLines = append(cardLines, emptyStyle.Render("(empty)"))
		}

		innerHeight := max(1, colHeight-4)
		windowHeight := max(1, innerHeight-len(headerLines)-1)
		scrollTop := 0
		if stageIdx == focusStage && focusStart >= 0 {
			if focusEnd >= scrollTop+windowHeight {
				scrollTop = focusEnd - windowHeight + 1
			}
			if focusStart < scrollTop {
				scrollTop = focusStart
			}
		}
		scrollTop = clamp(scrollTop, 0, max(0, len(cardLines)-windowHeight))
		if len(cardLines) > windowHeight {
			cardLines = cardLines[scrollTop : scrollTop+windowHeight]
		}

		lines := append(append(headerLines, ""), cardLines...)
		content := fitLines(strings.Join(lines, "\n"), innerHeight)
		style := baseColStyle
		if stageIdx == focusStage {
			style = baseColStyle.BorderForeground(accent)
		}
		columnViews = append(columnViews, style.Render(content))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)
}

// renderList draws every stage as a heading followed by one row per card.
func (m Model) renderList(muted color.Color) string {
	itemSubStyle := lipgloss.NewStyle().Foreground(muted)
	selectedCardStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	width := max(40, m.width-4)

	lines := make([]string, 0, len(m.stages)*3)
	for stageIdx, stage := range m.stages {
		accent := stageAccentColor(stage.Color)
		lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(accent).Render(
			fmt.Sprintf("%s (%d) %s", stage.Title, stage.Count(), formatCents(stage.TotalValue())),
		))
		if len(stage.Cards) == 0 {
			lines = append(lines, "   "+emptyStyle.Render("(empty)"))
		}
		for cardIdx, card := range stage.Cards {
			row := truncate(card.Title, max(1, width/3))
			sub := joinNonEmpty(" · ", card.Company, formatCents(card.ValueCents), string(card.Priority), string(card.Temperature))
			if stageIdx == m.selectedStage && cardIdx == m.selectedCard {
				lines = append(lines, selectedCardStyle.Render("│  "+row)+"  "+itemSubStyle.Render(sub))
				continue
			}
			lines = append(lines, "   "+row+"  "+itemSubStyle.Render(sub))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// countCards counts cards across stages.
func countCards(stages []domain.Stage) int {
	n := 0
	for _, stage := range stages {
		n += len(stage.Cards)
	}
	return n
}

// renderDetail draws the card detail pane.
func (m Model) renderDetail(helpStyle lipgloss.Style) string {
	card, stage, ok := m.selected()
	if !ok {
		return ""
	}
	width := clamp(m.width-8, 30, 80)
	body := m.markdown.render(cardMarkdown(card, stage), width-4)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(stageAccentColor(stage.Color)).
		Padding(0, 1).
		Width(width).
		Render(body + "\n\n" + helpStyle.Render("i/esc close • y copy id"))
}

// stageAccentColor maps a stage color to a terminal palette entry.
func stageAccentColor(c domain.Color) color.Color {
	switch c {
	case domain.ColorBlue:
		return lipgloss.Color("33")
	case domain.ColorIndigo:
		return lipgloss.Color("62")
	case domain.ColorPurple:
		return lipgloss.Color("135")
	case domain.ColorGreen:
		return lipgloss.Color("35")
	default:
		return lipgloss.Color("245")
	}
}

// formatCents renders a deal value as whole dollars with cents when present.
func formatCents(cents int64) string {
	dollars, rem := cents/100, cents%100
	if rem == 0 {
		return "$" + humanize.Comma(dollars)
	}
	return fmt.Sprintf("$%s.%02d", humanize.Comma(dollars), rem)
}

// columnWidthFor returns the column width that fits every stage on the board.
func (m Model) columnWidthFor(boardWidth int) int {
	if len(m.stages) == 0 {
		return 24
	}
	w := 28
	if boardWidth > 0 {
		// Per-column overhead: left/right border (2), horizontal padding (4), margin-right (1)
		const colOverhead = 7
		usable := boardWidth - len(m.stages)*colOverhead
		candidate := usable / len(m.stages)
		if candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 24, 42)
}

// columnHeight returns column height.
func (m Model) columnHeight() int {
	const headerLines, footerLines = 2, 4
	h := m.height - headerLines - footerLines
	if h < 14 {
		return 14
	}
	return h
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent overlays on content.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centeredOverlay := lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
	)
	overlayLayer := lipgloss.NewLayer(centeredOverlay).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
