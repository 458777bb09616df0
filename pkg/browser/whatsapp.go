package browser

import (
	"fmt"
	"time"
)

// injectScript sets the compose box content directly, fires an input
// notification so the page's state machine sees the write, and cycles
// focus to force the rendering engine to commit it.
const injectScript = `(args) => {
	const el = document.querySelector(args.selector);
	if (!el) {
		throw new Error('message box not found');
	}
	el.focus();
	el.textContent = args.text;
	el.dispatchEvent(new InputEvent('input', { bubbles: true }));
	el.blur();
	el.focus();
	return el.innerText.length;
}`

// MessageBox adapts the conversation compose surface to the delivery
// engine's Surface contract.
type MessageBox struct {
	driver Driver
}

// NewMessageBox creates the compose-surface adapter for a live driver.
func NewMessageBox(driver Driver) *MessageBox {
	return &MessageBox{driver: driver}
}

// Focus clicks into the compose box.
func (m *MessageBox) Focus() error {
	return m.driver.Click(SelectorMessageBox)
}

// Clear selects all content in the compose box and deletes it.
func (m *MessageBox) Clear() error {
	if err := m.Focus(); err != nil {
		return err
	}
	if err := m.driver.Press(KeySelectAll); err != nil {
		return err
	}
	return m.driver.Press(KeyDelete)
}

// Inject sets the compose box content through direct DOM injection.
func (m *MessageBox) Inject(text string) error {
	_, err := m.driver.Evaluate(injectScript, map[string]interface{}{
		"selector": SelectorMessageBox,
		"text":     text,
	})
	return err
}

// Paste places text on the system clipboard and pastes it into the
// focused compose box. The clipboard carries the full Unicode range,
// bypassing character-by-character input entirely.
func (m *MessageBox) Paste(text string) error {
	if err := m.driver.SetClipboard(text); err != nil {
		return err
	}
	if err := m.Focus(); err != nil {
		return err
	}
	return m.driver.Press(KeyPaste)
}

// TypeSegment sends one line through native character input.
func (m *MessageBox) TypeSegment(text string) error {
	return m.driver.TypeText(text)
}

// LineBreak issues the Shift+Enter gesture WhatsApp uses for an
// in-message newline. A literal Enter would send the message early.
func (m *MessageBox) LineBreak() error {
	return m.driver.Press(KeyLineBreak)
}

// RenderedText reads back the compose box's rendered content.
func (m *MessageBox) RenderedText() (string, error) {
	return m.driver.InnerText(SelectorMessageBox)
}

// Submit sends the composed message.
func (m *MessageBox) Submit() error {
	if err := m.Focus(); err != nil {
		return err
	}
	return m.driver.Press(KeyEnter)
}

// OpenConversation searches the chat list for the phone number and opens
// the first matching conversation, leaving the compose box ready.
func OpenConversation(driver Driver, phone string, waitTimeout time.Duration) error {
	if err := driver.WaitFor(SelectorSearchBox, waitTimeout); err != nil {
		return fmt.Errorf("search box not available: %w", err)
	}
	if err := driver.Click(SelectorSearchBox); err != nil {
		return err
	}

	// Empty any residue from the previous recipient before typing.
	if err := driver.Press(KeySelectAll); err != nil {
		return err
	}
	if err := driver.Press(KeyDelete); err != nil {
		return err
	}
	if err := driver.TypeText(phone); err != nil {
		return err
	}

	if err := driver.WaitFor(SelectorSearchResults, waitTimeout); err != nil {
		return fmt.Errorf("no search results for %s: %w", phone, err)
	}
	if err := driver.Click(SelectorSearchResultItem); err != nil {
		return fmt.Errorf("failed to open conversation for %s: %w", phone, err)
	}

	if err := driver.WaitFor(SelectorMessageBox, waitTimeout); err != nil {
		return fmt.Errorf("message box not available for %s: %w", phone, err)
	}
	return nil
}

// WaitForLogin navigates to WhatsApp Web and blocks until the logged-in
// UI appears. The New-chat button only renders after authentication, so
// its presence confirms the session's authenticated state.
func WaitForLogin(driver Driver, loginTimeout time.Duration) error {
	if err := driver.Navigate(WhatsAppURL); err != nil {
		return fmt.Errorf("failed to open WhatsApp Web: %w", err)
	}
	if err := driver.WaitFor(SelectorNewChatButton, loginTimeout); err != nil {
		return fmt.Errorf("WhatsApp Web not logged in within %s: %w", loginTimeout, err)
	}
	return nil
}
