package browser

import "time"

// WhatsAppURL is the entry point for every session.
const WhatsAppURL = "https://web.whatsapp.com/"

// WhatsApp Web selectors, kept in one place because the UI markup shifts
// between releases and these are the only coupling points.
const (
	// SelectorNewChatButton appears only after login completes; used as
	// the readiness and health probe.
	SelectorNewChatButton = "button[aria-label*='New chat']"

	// SelectorSearchBox is the chat-list search input.
	SelectorSearchBox = "div[contenteditable='true'][data-tab='3']"

	// SelectorSearchResults is the container listing search matches.
	SelectorSearchResults = "div[aria-label*='Search results']"

	// SelectorSearchResultItem is the first concrete match inside the
	// results container.
	SelectorSearchResultItem = "div[aria-label*='Search results'] div[role='listitem']"

	// SelectorMessageBox is the conversation compose surface.
	SelectorMessageBox = "div[aria-label*='Type a message'][contenteditable='true']"
)

// Key chords used by the delivery strategies.
const (
	KeyEnter     = "Enter"
	KeyLineBreak = "Shift+Enter"
	KeyPaste     = "Control+v"
	KeySelectAll = "Control+a"
	KeyDelete    = "Delete"
)

// Default operation timeouts.
const (
	DefaultWaitTimeout  = 50 * time.Second
	DefaultLoginTimeout = 10 * time.Minute
)
