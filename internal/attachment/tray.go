package attachment

import "sync"

// Tray stages attachments for the next turn of a chat surface. Take hands
// them over and leaves the tray empty, so nothing carries over to the
// following turn.
type Tray struct {
	mu    sync.Mutex
	pre   *Preprocessor
	items []Attachment
}

// NewTray returns an empty tray validating against pre.
func NewTray(pre *Preprocessor) *Tray {
	return &Tray{pre: pre}
}

// Add validates and stages an attachment. Rejected uploads leave the tray
// unchanged.
func (t *Tray) Add(a Attachment) error {
	if _, err := t.pre.Check(a); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, a)
	return nil
}

// Items returns a copy of the staged attachments.
func (t *Tray) Items() []Attachment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Attachment(nil), t.items...)
}

// Len returns the number of staged attachments.
func (t *Tray) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Take returns the staged attachments and empties the tray.
func (t *Tray) Take() []Attachment {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.items
	t.items = nil
	return items
}

// Clear drops every staged attachment.
func (t *Tray) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = nil
}
