package chatty

import (
	"context"

	"github.com/capitalize-ai/chat-chain/internal/chain"
)

const lobbyPrompt = "You are a segmentation machine who reply with numbers to segment sentences." +
	" The segments numbers are:" +
	" 1. If sentence is to request registering a comment." +
	" 0. If sentence for anything else." +
	" The sentence is: {message}"

const commentRequestPrompt = "You are a helpful assistant named Chatty helping user send a comment" +
	" on something you said earlier. Explain to user the following:" +
	"\n- User comments which improves your knowledge are highly appreciated and welcome." +
	"\n- User needs to provide his name, email address, and comment to proceed." +
	"\n- User can cancel the process of registering a comment by requesting to."

func lobbyMode(g *chain.Graph, collection string) *chain.Mode {
	return &chain.Mode{
		Name:   Lobby,
		Prompt: lobbyPrompt,
		Options: []chain.ModeOption{
			chain.Option(chain.Equals("0"), chain.Knowledge(collection)),
			chain.Option(chain.Equals("1"), chain.Transaction(g.Goto(CommentDetails, true, requestComment))),
		},
	}
}

func requestComment(ctx context.Context, c *chain.Conversation, message, response string) ([]chain.Message, error) {
	return []chain.Message{chain.SystemMessage(commentRequestPrompt)}, nil
}
