package bot

import "strings"

// CommandParser разбирает команды оператора: "/cmd", "!cmd", "/cmd@BotName"
// и подтверждение "YES <id>" без префикса.
type CommandParser struct {
	validPrefixes []string
	botUsername   string
}

// NewCommandParser создаёт парсер. botUsername без "@", может быть пустым.
func NewCommandParser(botUsername string) *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!"},
		botUsername:   strings.ToLower(strings.TrimPrefix(botUsername, "@")),
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// ok=false — это не команда; addressed=false — команда другому боту ("/cmd@OtherBot").
func (p *CommandParser) ParseCommand(text string) (command string, args []string, ok, addressed bool) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) == 0 {
		return "", nil, false, true
	}

	head := parts[0]
	if strings.EqualFold(head, "yes") {
		return "yes", parts[1:], true, true
	}

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(head, prefix) {
			head = strings.TrimPrefix(head, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix || head == "" {
		return "", nil, false, true
	}

	head = strings.ToLower(head)
	if at := strings.IndexByte(head, '@'); at >= 0 {
		mention := head[at+1:]
		head = head[:at]
		if p.botUsername != "" && mention != p.botUsername {
			return head, parts[1:], true, false
		}
	}
	if head == "" {
		return "", nil, false, true
	}
	return head, parts[1:], true, true
}
