package model

// KnowledgePart is one document to embed and store.
type KnowledgePart struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// AddKnowledgeRequest represents a request to add parts to a collection.
type AddKnowledgeRequest struct {
	Parts []KnowledgePart `json:"parts"`
}

// AddKnowledgeResponse lists the IDs of the stored parts, in request order.
type AddKnowledgeResponse struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
}

// SetTagPromptRequest sets the ending fragment of a tag.
type SetTagPromptRequest struct {
	Prompt string `json:"prompt"`
}
