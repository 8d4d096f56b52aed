package api

import (
	"net/http"

	"github.com/starford/synka/internal/interaction"
)

// InteractionState handles GET /api/interactions.
//
//	@Summary		Pending interaction state
//	@Tags			interactions
//	@Produce		json
//	@Success		200	{object}	interaction.Snapshot
//	@Security		BearerAuth
//	@Router			/interactions [get]
func (h *Handler) InteractionState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.d.Tracker.Snapshot())
}

// StartInteraction handles POST /api/interactions.
//
//	@Summary		Record an outbound call, email or chat
//	@Tags			interactions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StartInteractionRequest	true	"Contact and type"
//	@Success		201		{object}	StartInteractionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/interactions [post]
func (h *Handler) StartInteraction(w http.ResponseWriter, r *http.Request) {
	var req StartInteractionRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Type.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("type must be call, email or chat"))
		return
	}
	c, ok := h.d.Session.Contacts.Find(req.ContactID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("contact not found"))
		return
	}
	link, err := h.d.Tracker.Start(r.Context(), c, req.Type, interaction.Message{Subject: req.Subject, Body: req.Body})
	if err != nil {
		writeError(w, "start interaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, StartInteractionResponse{URL: link})
}

// ConfirmInteraction handles POST /api/interactions/confirm.
//
//	@Summary		Answer the confirmation prompt with yes
//	@Tags			interactions
//	@Produce		json
//	@Success		200		{object}	interaction.Editor
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/interactions/confirm [post]
func (h *Handler) ConfirmInteraction(w http.ResponseWriter, r *http.Request) {
	e, err := h.d.Tracker.Confirm(r.Context())
	if err != nil {
		writeError(w, "confirm interaction", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeclineInteraction handles POST /api/interactions/decline.
//
//	@Summary		Answer the confirmation prompt with no
//	@Tags			interactions
//	@Produce		json
//	@Success		200		{object}	interaction.Editor
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/interactions/decline [post]
func (h *Handler) DeclineInteraction(w http.ResponseWriter, r *http.Request) {
	e, err := h.d.Tracker.Decline(r.Context())
	if err != nil {
		writeError(w, "decline interaction", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// SetInteractionNote handles PUT /api/interactions/note.
//
//	@Summary		Replace the note editor text
//	@Tags			interactions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteRequest	true	"Note text"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/interactions/note [put]
func (h *Handler) SetInteractionNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.d.Tracker.SetNoteText(req.Text); err != nil {
		writeError(w, "set interaction note", err)
		return
	}
	noContent(w)
}

// SaveInteraction handles POST /api/interactions/save.
//
//	@Summary		Save the open note and return to idle
//	@Tags			interactions
//	@Produce		json
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/interactions/save [post]
func (h *Handler) SaveInteraction(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Tracker.Save(r.Context()); err != nil {
		writeError(w, "save interaction", err)
		return
	}
	noContent(w)
}

// DismissInteraction handles DELETE /api/interactions.
//
//	@Summary		Close any prompt or editor without saving
//	@Tags			interactions
//	@Success		204
//	@Security		BearerAuth
//	@Router			/interactions [delete]
func (h *Handler) DismissInteraction(w http.ResponseWriter, r *http.Request) {
	h.d.Tracker.Dismiss(r.Context())
	noContent(w)
}

// FocusLost handles POST /api/focus/lost.
//
//	@Summary		Report that the app lost focus
//	@Tags			interactions
//	@Success		204
//	@Security		BearerAuth
//	@Router			/focus/lost [post]
func (h *Handler) FocusLost(w http.ResponseWriter, r *http.Request) {
	h.d.Tracker.FocusLost(r.Context())
	noContent(w)
}

// FocusGained handles POST /api/focus/gained. A pending interaction yields
// its confirmation prompt; otherwise the response is empty.
//
//	@Summary		Report that the app regained focus
//	@Tags			interactions
//	@Produce		json
//	@Success		200		{object}	interaction.Prompt
//	@Success		204
//	@Security		BearerAuth
//	@Router			/focus/gained [post]
func (h *Handler) FocusGained(w http.ResponseWriter, r *http.Request) {
	p := h.d.Tracker.FocusGained(r.Context())
	if p == nil {
		noContent(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
