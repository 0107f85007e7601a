package chatty

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/capitalize-ai/chat-chain/internal/chain"
)

const confirmPrompt = "You are a bot whose job is to extract following values from conversation:" +
	` "name", "email", "comment", "confirm". Values can not be empty or zero-length. Reply with` +
	" JSON format only. Example of a correct reply JSON format:" +
	` {"name": <user's name>, "email": <user's email lowercase>, "comment": <user's comment>` +
	` "confirm": <boolean value to indicate user confirmed the details>}. ` +
	" If any values are missing set the value in json format to null." +
	" The conversion is:\n{conversation}"

// confirmation is the extraction answer of the confirm mode.
type confirmation struct {
	Name    string
	Email   string
	Comment string
	Confirm bool
}

// parseConfirmation decodes the answer field by field. "confirm" follows the same
// truthiness as the details fields; an answer that is not a JSON object is an
// unconfirmed one.
func parseConfirmation(response string) confirmation {
	var m map[string]any
	if err := json.Unmarshal([]byte(response), &m); err != nil {
		return confirmation{}
	}
	return confirmation{
		Name:    stringValue(m["name"]),
		Email:   stringValue(m["email"]),
		Comment: stringValue(m["comment"]),
		Confirm: truthy(m["confirm"]),
	}
}

func confirmMode(g *chain.Graph, sink CommentSink) *chain.Mode {
	return &chain.Mode{
		Name:   CommentConfirm,
		Prompt: confirmPrompt,
		Options: []chain.ModeOption{
			chain.Option(
				func(response string) bool { return !parseConfirmation(response).Confirm },
				chain.Transaction(g.Goto(Lobby, true, cancelComment)),
			),
			chain.Option(
				func(response string) bool { return parseConfirmation(response).Confirm },
				chain.Transaction(g.Goto(Lobby, true, registerComment(sink))),
			),
		},
	}
}

func registerComment(sink CommentSink) chain.TransactionFunc {
	return func(ctx context.Context, c *chain.Conversation, message, response string) ([]chain.Message, error) {
		if sink == nil {
			return nil, fmt.Errorf("register comment: no comment sink")
		}

		conf := parseConfirmation(response)
		ref, err := sink.Register(ctx, Comment{
			Session: c.Session,
			Name:    conf.Name,
			Email:   conf.Email,
			Comment: conf.Comment,
		})
		if err != nil {
			return nil, fmt.Errorf("register comment: %w", err)
		}

		return []chain.Message{chain.SystemMessage(fmt.Sprintf(
			"You are a chat bot assisting %s register a comment for Chatty team."+
				" Thank user and inform him request has been received and that Masaar team would"+
				" contact him shortly. Also infor user the reference for request is %s."+
				" Also inform user you are ready to receive his questions about what you know."+
				" Reply in the same language as following sentence: %s",
			conf.Name, ref, message,
		))}, nil
	}
}
