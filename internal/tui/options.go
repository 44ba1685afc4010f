package tui

// Option configures a Model.
type Option func(*Model)

// ClipboardFunc writes text to the system clipboard.
type ClipboardFunc func(string) error

// WithClipboard replaces the clipboard writer used by the copy binding.
func WithClipboard(fn ClipboardFunc) Option {
	return func(m *Model) {
		if fn != nil {
			m.copyToClipboard = fn
		}
	}
}

// WithTitle sets the header title.
func WithTitle(title string) Option {
	return func(m *Model) {
		if title != "" {
			m.title = title
		}
	}
}
