package tui

import "charm.land/bubbles/v2/key"

// keyMap holds every board binding.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	moveLeft   key.Binding
	moveRight  key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	pickUp     key.Binding
	drop       key.Binding
	cancel     key.Binding
	stageLeft  key.Binding
	stageRight key.Binding
	cardInfo   key.Binding
	copyID     key.Binding
	filter     key.Binding
	toggleView key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "stage left")),
		moveRight:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "stage right")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "card up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "card down")),
		pickUp:     key.NewBinding(key.WithKeys("space", " "), key.WithHelp("space", "pick up card")),
		drop:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop card")),
		cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		stageLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move stage left")),
		stageRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move stage right")),
		cardInfo:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "card details")),
		copyID:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy card id")),
		filter:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "filter priority")),
		toggleView: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "board/list view")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.pickUp, k.drop, k.cancel, k.cardInfo, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.pickUp, k.drop, k.cancel, k.stageLeft, k.stageRight},
		{k.cardInfo, k.copyID, k.filter, k.toggleView},
		{k.reload, k.toggleHelp, k.quit},
	}
}
