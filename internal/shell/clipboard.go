package shell

import "github.com/atotto/clipboard"

// Clipboard is the system clipboard as the shell sees it.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func SystemClipboard() Clipboard { return systemClipboard{} }

func (systemClipboard) ReadAll() (string, error) { return clipboard.ReadAll() }

func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }
