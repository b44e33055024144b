package models

// CreateNoteRequest is the body of POST /api/notes. DontAsk is kept for
// compatibility with existing clients; the server never asks.
type CreateNoteRequest struct {
	Data    string `json:"data"`
	DontAsk bool   `json:"dontAsk"`
}

type CreatedNote struct {
	NoteLink string `json:"noteLink"`
}

type CreateNoteResponse struct {
	Data CreatedNote `json:"data"`
}

// FetchNoteResponse is returned exactly once per token by DELETE /api/notes/{token}.
type FetchNoteResponse struct {
	Data string `json:"data"`
}

type NoteStatusResponse struct {
	Token  string `json:"token"`
	Exists bool   `json:"exists"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
