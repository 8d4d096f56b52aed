package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/synka/internal/domains"
	"github.com/starford/synka/internal/models"
)

// UpdateProfile handles PATCH /api/profile.
//
//	@Summary		Patch the signed-in user's profile
//	@Tags			profile
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Patch	true	"Fields to change"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profile [patch]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "update profile", func(ctx context.Context, _ string, p models.Patch) error {
		return h.d.Session.Profile.Update(ctx, p)
	})
}

// CreateEvent handles POST /api/events.
//
//	@Summary		Create an event
//	@Tags			events
//	@Accept			json
//	@Produce		json
//	@Param			body	body		domains.EventInput	true	"Event to create"
//	@Success		201		{object}	models.Event
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req domains.EventInput
	if !decode(w, r, &req) {
		return
	}
	e, err := h.d.Session.Events.Create(r.Context(), req)
	if err != nil {
		writeError(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// ActiveEvents handles GET /api/events/active.
//
//	@Summary		Events running at a point in time
//	@Tags			events
//	@Produce		json
//	@Param			at	query		string	false	"RFC 3339 time, defaults to now"
//	@Success		200	{array}		models.Event
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/active [get]
func (h *Handler) ActiveEvents(w http.ResponseWriter, r *http.Request) {
	at := h.d.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("at must be an RFC 3339 time"))
			return
		}
		at = t
	}
	events := h.d.Session.Events.ActiveAt(at)
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// UpdateEvent handles PATCH /api/events/{id}.
//
//	@Summary		Patch event fields
//	@Tags			events
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string	true	"Event id"
//	@Param			body	body		models.Patch	true	"Fields to change"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id} [patch]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "update event", h.d.Session.Events.Update)
}

// DeleteEvent handles DELETE /api/events/{id}.
//
//	@Summary		Delete an event
//	@Tags			events
//	@Produce		json
//	@Param			id	path		string	true	"Event id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "delete event", h.d.Session.Events.Delete)
}

// CreateTag handles POST /api/tags.
//
//	@Summary		Create a tag
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TagRequest	true	"Tag to create"
//	@Success		201		{object}	models.Tag
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags [post]
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.d.Session.Tags.Create(r.Context(), req.Name, req.Color)
	if err != nil {
		writeError(w, "create tag", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTag handles PATCH /api/tags/{id}.
//
//	@Summary		Patch tag fields
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string	true	"Tag id"
//	@Param			body	body		models.Patch	true	"Fields to change"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{id} [patch]
func (h *Handler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "update tag", h.d.Session.Tags.Update)
}

// DeleteTag handles DELETE /api/tags/{id}.
//
//	@Summary		Delete a tag
//	@Tags			tags
//	@Produce		json
//	@Param			id	path		string	true	"Tag id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{id} [delete]
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "delete tag", h.d.Session.Tags.Delete)
}

// CreateTemplate handles POST /api/templates.
//
//	@Summary		Create a message template
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			body	body		domains.TemplateInput	true	"Template to create"
//	@Success		201		{object}	models.Template
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/templates [post]
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req domains.TemplateInput
	if !decode(w, r, &req) {
		return
	}
	t, err := h.d.Session.Templates.Create(r.Context(), req)
	if err != nil {
		writeError(w, "create template", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTemplate handles PATCH /api/templates/{id}.
//
//	@Summary		Patch template fields
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string	true	"Template id"
//	@Param			body	body		models.Patch	true	"Fields to change"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/templates/{id} [patch]
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "update template", h.d.Session.Templates.Update)
}

// DeleteTemplate handles DELETE /api/templates/{id}.
//
//	@Summary		Delete a template
//	@Tags			templates
//	@Produce		json
//	@Param			id	path		string	true	"Template id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/templates/{id} [delete]
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "delete template", h.d.Session.Templates.Delete)
}

// RenderTemplate handles POST /api/templates/{id}/render.
//
//	@Summary		Render a template for a contact
//	@Tags			templates
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Template id"
//	@Param			body	body		RenderRequest	true	"Recipient and channel"
//	@Success		200		{object}	domains.Message
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/templates/{id}/render [post]
func (h *Handler) RenderTemplate(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.d.Session.Compose(req.ContactID, chi.URLParam(r, "id"), req.Channel)
	if err != nil {
		writeError(w, "render template", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// CreateSignature handles POST /api/signatures.
//
//	@Summary		Create an email signature
//	@Tags			signatures
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SignatureRequest	true	"Signature to create"
//	@Success		201		{object}	models.Signature
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/signatures [post]
func (h *Handler) CreateSignature(w http.ResponseWriter, r *http.Request) {
	var req SignatureRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.d.Session.Signatures.Create(r.Context(), req.Name, req.HTML, req.IsSelected)
	if err != nil {
		writeError(w, "create signature", err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// UpdateSignature handles PATCH /api/signatures/{id}.
//
//	@Summary		Patch signature fields
//	@Tags			signatures
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string	true	"Signature id"
//	@Param			body	body		models.Patch	true	"Fields to change"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/signatures/{id} [patch]
func (h *Handler) UpdateSignature(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "update signature", h.d.Session.Signatures.Update)
}

// DeleteSignature handles DELETE /api/signatures/{id}.
//
//	@Summary		Delete a signature
//	@Tags			signatures
//	@Produce		json
//	@Param			id	path		string	true	"Signature id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/signatures/{id} [delete]
func (h *Handler) DeleteSignature(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "delete signature", h.d.Session.Signatures.Delete)
}

// SelectSignature handles POST /api/signatures/{id}/select.
//
//	@Summary		Make a signature the selected one
//	@Tags			signatures
//	@Produce		json
//	@Param			id	path		string	true	"Signature id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/signatures/{id}/select [post]
func (h *Handler) SelectSignature(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Session.Signatures.Select(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "select signature", err)
		return
	}
	noContent(w)
}
