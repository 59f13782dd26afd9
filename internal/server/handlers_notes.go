package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/emberfall/regnum/internal/model"
)

// HandleSendNote handles POST /v1/notes.
func (h *Handlers) HandleSendNote(w http.ResponseWriter, r *http.Request) {
	var req model.SendNoteRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	note, err := h.engine.SendNote(r.Context(), req.SenderRole, req.RecipientRole, req.Content)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, noteView(note))
}

// HandleListNotes handles GET /v1/notes?recipient_role=X. Only the
// recipient's view exists; there is no endpoint for reading another
// role's mail.
func (h *Handlers) HandleListNotes(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient_role")

	notes, err := h.engine.NotesFor(r.Context(), recipient)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	views := make([]model.NoteView, 0, len(notes))
	for _, n := range notes {
		views = append(views, noteView(n))
	}
	writeJSON(w, r, http.StatusOK, views)
}

// HandleMarkNoteRead handles POST /v1/notes/{note_id}/read.
func (h *Handlers) HandleMarkNoteRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("note_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "note_id must be a UUID")
		return
	}

	if err := h.engine.MarkNoteRead(r.Context(), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"read": true})
}

func noteView(n model.Note) model.NoteView {
	return model.NoteView{
		ID:        n.ID,
		Sender:    n.SenderRole,
		Content:   n.Content,
		Read:      n.Read,
		Timestamp: n.CreatedAt,
	}
}
