package bot

import (
	"strings"

	"github.com/akudrin/ipkeeper/internal/models"
)

// ParseCommand turns a raw message text into a Command. Non-slash text is a
// plain message; an unknown slash command parses as CommandUnknown.
func ParseCommand(text string) models.Command {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return models.Command{Kind: models.CommandPlainText, Arg: text}
	}

	name := trimmed
	arg := ""
	if i := strings.IndexAny(trimmed, " \t\n"); i >= 0 {
		name = trimmed[:i]
		arg = strings.TrimSpace(trimmed[i:])
	}

	// Group chats address commands as /add@botname.
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}

	switch strings.ToLower(name) {
	case "/start":
		return models.Command{Kind: models.CommandStart}
	case "/help":
		return models.Command{Kind: models.CommandHelp}
	case "/add":
		return models.Command{Kind: models.CommandAdd, Arg: arg}
	case "/delete":
		return models.Command{Kind: models.CommandDelete, Arg: arg}
	case "/list":
		return models.Command{Kind: models.CommandList}
	case "/check":
		return models.Command{Kind: models.CommandCheck, Arg: arg}
	case "/batchadd":
		return models.Command{Kind: models.CommandBatchAdd}
	default:
		return models.Command{Kind: models.CommandUnknown}
	}
}
