package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/synka/internal/domains"
	"github.com/starford/synka/internal/models"
)

// Status handles GET /api/status.
//
//	@Summary		Session and connectivity summary
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		UserID:  h.d.Session.UserID(),
		Online:  true,
		Loading: h.d.Session.Loading(),
	}
	if h.d.Monitor != nil {
		st := h.d.Monitor.Status()
		resp.Online, resp.Since = st.Online, st.Since
	}
	writeJSON(w, http.StatusOK, resp)
}

// State handles GET /api/state/{domain}.
//
//	@Summary		Current data and loading flag of a domain
//	@Tags			session
//	@Produce		json
//	@Param			domain	path	string	true	"Domain"	Enums(contacts, profile, events, tags, templates, signatures)
//	@Success		200
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/state/{domain} [get]
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	st, err := h.d.Session.State(chi.URLParam(r, "domain"))
	if err != nil {
		writeError(w, "state", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Refetch handles POST /api/refetch/{domain}.
//
//	@Summary		Refetch a domain in the foreground
//	@Tags			session
//	@Produce		json
//	@Param			domain	path		string	true	"Domain"	Enums(contacts, profile, events, tags, templates, signatures)
//	@Success		200
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/refetch/{domain} [post]
func (h *Handler) Refetch(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if err := h.d.Session.Refetch(r.Context(), domain); err != nil {
		writeError(w, "refetch", err)
		return
	}
	st, _ := h.d.Session.State(domain)
	writeJSON(w, http.StatusOK, st)
}

// Sync handles POST /api/sync by broadcasting data-sync to every domain.
//
//	@Summary		Broadcast a data-sync signal to every domain
//	@Tags			session
//	@Success		202
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, _ *http.Request) {
	if h.d.Bus != nil {
		h.d.Bus.SyncNow()
	}
	w.WriteHeader(http.StatusAccepted)
}

// Connectivity handles POST /api/connectivity.
//
//	@Summary		Override the connectivity state
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConnectivityRequest	true	"Online flag"
//	@Success		200		{object}	connectivity.Status
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/connectivity [post]
func (h *Handler) Connectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	if !decode(w, r, &req) {
		return
	}
	if h.d.Monitor == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("connectivity monitor disabled"))
		return
	}
	h.d.Monitor.Set(req.Online)
	writeJSON(w, http.StatusOK, h.d.Monitor.Status())
}

// ListContacts handles GET /api/contacts.
//
//	@Summary		List contacts, optionally filtered
//	@Tags			contacts
//	@Produce		json
//	@Param			q		query		string	false	"Search text"
//	@Param			tag		query		string	false	"Tag id"
//	@Success		200		{array}		models.Contact
//	@Security		BearerAuth
//	@Router			/contacts [get]
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	c := h.d.Session.Contacts
	q := r.URL.Query()
	var rows []models.Contact
	switch {
	case q.Get("tag") != "":
		rows = c.WithTag(q.Get("tag"))
	case q.Get("q") != "":
		rows = c.Search(q.Get("q"))
	default:
		rows = c.Rows()
	}
	if rows == nil {
		rows = []models.Contact{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetContact handles GET /api/contacts/{id}.
//
//	@Summary		Get a single contact
//	@Tags			contacts
//	@Produce		json
//	@Param			id	path		string	true	"Contact id"
//	@Success		200		{object}	models.Contact
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id} [get]
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, ok := h.d.Session.Contacts.Find(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateContact handles POST /api/contacts.
//
//	@Summary		Create a contact
//	@Tags			contacts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateContactRequest	true	"Contact to create"
//	@Success		201		{object}	models.Contact
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts [post]
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req CreateContactRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.d.Session.Contacts.Create(r.Context(), req.ContactInput, req.EventIDs...)
	if err != nil {
		writeError(w, "create contact", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// SubmitPublic handles POST /api/contacts/public.
//
//	@Summary		Leave contact details on an owner's public card
//	@Tags			contacts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PublicContactRequest	true	"Visitor details"
//	@Success		201		{object}	models.Contact
//	@Failure		400		{object}	errResponse
//	@Router			/contacts/public [post]
func (h *Handler) SubmitPublic(w http.ResponseWriter, r *http.Request) {
	var req PublicContactRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("owner_id is required"))
		return
	}
	c, err := domains.SubmitPublic(r.Context(), h.d.Remote, req.OwnerID, req.ContactInput, h.d.Now())
	if err != nil {
		writeError(w, "public contact", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateContact handles PATCH /api/contacts/{id}.
//
//	@Summary		Patch contact fields optimistically
//	@Tags			contacts
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string	true	"Contact id"
//	@Param			body	body		models.Patch	true	"Fields to change"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id} [patch]
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "update contact", h.d.Session.Contacts.Update)
}

// DeleteContact handles DELETE /api/contacts/{id}.
//
//	@Summary		Delete a contact
//	@Tags			contacts
//	@Produce		json
//	@Param			id	path		string	true	"Contact id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id} [delete]
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "delete contact", h.d.Session.Contacts.Delete)
}

// AttachTag handles PUT /api/contacts/{id}/tags/{tagID}.
//
//	@Summary		Attach a tag to a contact
//	@Tags			contacts
//	@Produce		json
//	@Param			id	path		string	true	"Contact id"
//	@Param			tagID	path		string	true	"Tag id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id}/tags/{tagID} [put]
func (h *Handler) AttachTag(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Session.AttachTag(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "tagID")); err != nil {
		writeError(w, "attach tag", err)
		return
	}
	noContent(w)
}

// DetachTag handles DELETE /api/contacts/{id}/tags/{tagID}.
//
//	@Summary		Detach a tag from a contact
//	@Tags			contacts
//	@Produce		json
//	@Param			id	path		string	true	"Contact id"
//	@Param			tagID	path		string	true	"Tag id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id}/tags/{tagID} [delete]
func (h *Handler) DetachTag(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Session.Contacts.RemoveTag(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "tagID")); err != nil {
		writeError(w, "detach tag", err)
		return
	}
	noContent(w)
}

// AttachEvent handles PUT /api/contacts/{id}/events/{eventID}.
//
//	@Summary		Attach an event to a contact
//	@Tags			contacts
//	@Produce		json
//	@Param			id	path		string	true	"Contact id"
//	@Param			eventID	path		string	true	"Event id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id}/events/{eventID} [put]
func (h *Handler) AttachEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Session.AttachEvent(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "eventID")); err != nil {
		writeError(w, "attach event", err)
		return
	}
	noContent(w)
}

// DetachEvent handles DELETE /api/contacts/{id}/events/{eventID}.
//
//	@Summary		Detach an event from a contact
//	@Tags			contacts
//	@Produce		json
//	@Param			id	path		string	true	"Contact id"
//	@Param			eventID	path		string	true	"Event id"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id}/events/{eventID} [delete]
func (h *Handler) DetachEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Session.Contacts.RemoveEvent(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "eventID")); err != nil {
		writeError(w, "detach event", err)
		return
	}
	noContent(w)
}

// AddNote handles POST /api/contacts/{id}/notes.
//
//	@Summary		Prepend a note to a contact's history
//	@Tags			contacts
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string	true	"Contact id"
//	@Param			body	body		NoteRequest	true	"Note text"
//	@Success		201		{object}	models.NoteEntry
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contacts/{id}/notes [post]
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := h.d.Session.Contacts.AppendNote(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, "add note", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// patch decodes a models.Patch body and applies it to the row named by {id}.
func (h *Handler) patch(w http.ResponseWriter, r *http.Request, op string, apply func(ctx context.Context, id string, p models.Patch) error) {
	var p models.Patch
	if !decode(w, r, &p) {
		return
	}
	if len(p) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("empty patch"))
		return
	}
	if err := apply(r.Context(), chi.URLParam(r, "id"), p); err != nil {
		writeError(w, op, err)
		return
	}
	noContent(w)
}

// remove deletes the row named by {id}.
func (h *Handler) remove(w http.ResponseWriter, r *http.Request, op string, del func(ctx context.Context, id string) error) {
	if err := del(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, op, err)
		return
	}
	noContent(w)
}
