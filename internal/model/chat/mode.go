package chat

import "fmt"

// Mode is the purpose category of a conversation. It is fixed at creation
// and scopes the single "current" session held by the caches.
type Mode string

const (
	ModeStory     Mode = "story"
	ModeSideQuest Mode = "side-quest"
	ModeAction    Mode = "action"
	ModeJournal   Mode = "journal"
)

// Modes lists every valid conversation mode.
func Modes() []Mode {
	return []Mode{ModeStory, ModeSideQuest, ModeAction, ModeJournal}
}

// ParseMode validates a raw mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeStory, ModeSideQuest, ModeAction, ModeJournal:
		return Mode(raw), nil
	}
	return "", fmt.Errorf("unknown conversation mode: %q", raw)
}
