package inbox

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/cortex/pkg/domain"
)

// Message is one inbound request taken from the receive tool.
type Message struct {
	ID     string
	ChatID string
	Text   string
}

// decodeMessage reads a Message from a receive tool result.
// Objects are read through the message/text, message_id/id and chat_id
// fields; plain text is used as the message body. ok is false when the
// result holds nothing to process.
func decodeMessage(res domain.ToolResult) (Message, bool) {
	var msg Message
	if obj, isObj := res.Structured.(map[string]any); isObj {
		msg.Text = firstString(obj, "message", "text")
		msg.ID = firstString(obj, "message_id", "id")
		msg.ChatID = firstString(obj, "chat_id")
	} else {
		msg.Text = res.Text
	}

	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" || strings.HasPrefix(msg.Text, "ERROR") {
		return Message{}, false
	}
	if msg.ID == "" {
		sum := sha256.Sum256([]byte(msg.ChatID + "\x00" + msg.Text))
		msg.ID = hex.EncodeToString(sum[:8])
	}
	return msg, true
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case nil:
			continue
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}
