// Package chatty is an example mode graph: a knowledge assistant that can also take
// comments from users. Conversations start in the lobby, where every sentence is
// either a knowledge question or a request to register a comment. The comment flow
// collects name, email and comment, asks for confirmation, hands the comment to a
// CommentSink and returns to the lobby.
package chatty

import (
	"context"

	"github.com/capitalize-ai/chat-chain/internal/chain"
)

// Mode names.
const (
	Lobby          = "lobby"
	CommentDetails = "comment_details"
	CommentConfirm = "comment_confirm"
)

// Intro is the assistant persona used for knowledge answers.
const Intro = "You are a helpful assistant named Chatty who is helps users learn about" +
	" contributions of Muslims and Arabs to science and knowledge, past and modern." +
	" You also can take comments from users on the information you provide and register" +
	" them for review by team."

// Comment is a confirmed user comment.
type Comment struct {
	Session string `json:"session"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Comment string `json:"comment"`
}

// CommentSink registers comments and returns a reference the user can quote.
type CommentSink interface {
	Register(ctx context.Context, c Comment) (string, error)
}

// NewGraph builds and validates the chatty graph. Knowledge questions are answered
// from collection.
func NewGraph(sink CommentSink, collection string) (*chain.Graph, error) {
	g := chain.NewGraph(Lobby)

	if err := g.Add(
		lobbyMode(g, collection),
		detailsMode(g),
		confirmMode(g, sink),
	); err != nil {
		return nil, err
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
