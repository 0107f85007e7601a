package chatty

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/capitalize-ai/chat-chain/internal/chain"
)

const detailsPrompt = "You are a bot whose job is to extract following values from conversation:" +
	` "name", "email", "comment", "cancel". Values can not be empty or zero-length. Reply with` +
	" JSON format only. Example of a correct reply JSON format:" +
	` {"name": <user's name>, "email": <user's email lowercase>, "comment": <user's comment>` +
	` }. If user requested cancelling process return following JSON {"cancel": true}.` +
	" If any values are missing set the value in json format to null." +
	" The conversion is:\n{conversation}"

const cancelPrompt = "You are a chat bot assisting a user registering a comment. User has decided" +
	" to end the process to registering a comment. Inform user process has been" +
	" cancelled and user can start asking again about information on Muslims and" +
	" Arabs contributions to science and knowledge, past and modern." +
	" Reply in the same language as following sentence: '%s'"

var requiredFields = []string{"name", "email", "comment"}

// details is the extraction answer of the details mode. Required fields that are
// absent or null count as missing.
type details map[string]any

// parseDetails decodes the answer; anything that is not a JSON object yields all
// fields missing.
func parseDetails(response string) details {
	var d details
	if err := json.Unmarshal([]byte(response), &d); err != nil || d == nil {
		d = details{}
	}
	for _, field := range requiredFields {
		if _, ok := d[field]; !ok {
			d[field] = nil
		}
	}
	return d
}

func (d details) cancelled() bool {
	_, ok := d["cancel"]
	return ok
}

func (d details) missing() bool {
	for _, v := range d {
		if v == nil {
			return true
		}
	}
	return false
}

func (d details) complete() bool {
	for _, v := range d {
		if !truthy(v) {
			return false
		}
	}
	return true
}

func (d details) text(field string) string {
	return stringValue(d[field])
}

// stringValue renders a decoded JSON value; null is "".
func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

func detailsMode(g *chain.Graph) *chain.Mode {
	return &chain.Mode{
		Name:   CommentDetails,
		Prompt: detailsPrompt,
		Options: []chain.ModeOption{
			chain.Option(
				func(response string) bool { return parseDetails(response).cancelled() },
				chain.Transaction(g.Goto(Lobby, true, cancelComment)),
			),
			chain.Option(
				func(response string) bool { return parseDetails(response).missing() },
				chain.Transaction(requestMissing),
			),
			chain.Option(
				func(response string) bool { return parseDetails(response).complete() },
				chain.Transaction(g.Goto(CommentConfirm, false, requestConfirmation)),
			),
		},
	}
}

func cancelComment(ctx context.Context, c *chain.Conversation, message, response string) ([]chain.Message, error) {
	return []chain.Message{chain.SystemMessage(fmt.Sprintf(cancelPrompt, message))}, nil
}

func requestMissing(ctx context.Context, c *chain.Conversation, message, response string) ([]chain.Message, error) {
	values, err := json.Marshal(parseDetails(response))
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}

	start := message
	if first, ok := c.WindowStart(); ok {
		start = first.Content
	}

	return []chain.Message{chain.SystemMessage(fmt.Sprintf(
		"You are a chat bot assisting a user registering a comment. Extract values from"+
			" following JSON '%s', iterate it to user and request missing values."+
			" Reply in the same language as following sentence: '%s'",
		values, start,
	))}, nil
}

func requestConfirmation(ctx context.Context, c *chain.Conversation, message, response string) ([]chain.Message, error) {
	d := parseDetails(response)
	return []chain.Message{chain.SystemMessage(fmt.Sprintf(
		"You are a chat bot assisting %s registering a comment. User has provided"+
			" all required details which are 'name', 'email', 'comment'. Display the details to"+
			" user and request his confirmation on the details before finally registering the"+
			" comment in the system."+
			" Reply in the same language as following sentence: %s",
		d.text("name"), message,
	))}, nil
}
