package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/synka/internal/connectivity"
	"github.com/starford/synka/internal/domains"
	"github.com/starford/synka/internal/interaction"
	"github.com/starford/synka/internal/remote"
	"github.com/starford/synka/internal/syncbus"
)

// Deps holds the services behind the API.
type Deps struct {
	Session *domains.Session
	Tracker *interaction.Tracker
	// Monitor may be nil, in which case connectivity is reported as online.
	Monitor *connectivity.Monitor
	Bus     *syncbus.Bus
	// Remote serves the public card form, which writes on behalf of another owner.
	Remote *remote.Service
	Now    func() time.Time
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &Handler{d: d}

	r := chi.NewRouter()

	// The public form is reachable without the local token.
	r.Post("/contacts/public", h.SubmitPublic)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Session state.
		r.Get("/status", h.Status)
		r.Get("/state/{domain}", h.State)
		r.Post("/refetch/{domain}", h.Refetch)
		r.Post("/sync", h.Sync)
		r.Post("/connectivity", h.Connectivity)

		// Contacts.
		r.Get("/contacts", h.ListContacts)
		r.Post("/contacts", h.CreateContact)
		r.Get("/contacts/{id}", h.GetContact)
		r.Patch("/contacts/{id}", h.UpdateContact)
		r.Delete("/contacts/{id}", h.DeleteContact)
		r.Put("/contacts/{id}/tags/{tagID}", h.AttachTag)
		r.Delete("/contacts/{id}/tags/{tagID}", h.DetachTag)
		r.Put("/contacts/{id}/events/{eventID}", h.AttachEvent)
		r.Delete("/contacts/{id}/events/{eventID}", h.DetachEvent)
		r.Post("/contacts/{id}/notes", h.AddNote)

		// Profile.
		r.Patch("/profile", h.UpdateProfile)

		// Events.
		r.Post("/events", h.CreateEvent)
		r.Get("/events/active", h.ActiveEvents)
		r.Patch("/events/{id}", h.UpdateEvent)
		r.Delete("/events/{id}", h.DeleteEvent)

		// Tags.
		r.Post("/tags", h.CreateTag)
		r.Patch("/tags/{id}", h.UpdateTag)
		r.Delete("/tags/{id}", h.DeleteTag)

		// Templates.
		r.Post("/templates", h.CreateTemplate)
		r.Patch("/templates/{id}", h.UpdateTemplate)
		r.Delete("/templates/{id}", h.DeleteTemplate)
		r.Post("/templates/{id}/render", h.RenderTemplate)

		// Signatures.
		r.Post("/signatures", h.CreateSignature)
		r.Patch("/signatures/{id}", h.UpdateSignature)
		r.Delete("/signatures/{id}", h.DeleteSignature)
		r.Post("/signatures/{id}/select", h.SelectSignature)

		// Pending interaction.
		r.Get("/interactions", h.InteractionState)
		r.Post("/interactions", h.StartInteraction)
		r.Delete("/interactions", h.DismissInteraction)
		r.Post("/interactions/confirm", h.ConfirmInteraction)
		r.Post("/interactions/decline", h.DeclineInteraction)
		r.Put("/interactions/note", h.SetInteractionNote)
		r.Post("/interactions/save", h.SaveInteraction)
		r.Post("/focus/lost", h.FocusLost)
		r.Post("/focus/gained", h.FocusGained)

		// Bus stream.
		if d.Bus != nil {
			r.Get("/stream", d.Bus.ServeHTTP)
		}
	})

	return r
}

// Handler holds API route handlers.
type Handler struct {
	d Deps
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
