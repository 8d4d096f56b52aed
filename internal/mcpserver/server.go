// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the synced contact book to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/synka/internal/domains"
	"github.com/starford/synka/internal/models"
	"github.com/starford/synka/internal/syncbus"
)

// NoteFormatURI is the resource holding NoteFormatContract.
const NoteFormatURI = "synka://note-format"

// Server wraps the MCP server with Synka tools.
type Server struct {
	mcp  *server.MCPServer
	sess *domains.Session
	bus  *syncbus.Bus
	now  func() time.Time
}

// New creates a new MCP server with all tools registered over a mounted
// session.
func New(sess *domains.Session, bus *syncbus.Bus, version string, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	s := &Server{sess: sess, bus: bus, now: now}

	s.mcp = server.NewMCPServer(
		"Synka",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_contacts",
		mcp.WithDescription("List the user's contacts, newest first, with their tags and events."),
		mcp.WithString("tag_id", mcp.Description("Optional tag id to filter by")),
	), s.listContacts)

	s.mcp.AddTool(mcp.NewTool("search_contacts",
		mcp.WithDescription("Case-insensitive search over contact name, company, designation, email and phone."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.searchContacts)

	s.mcp.AddTool(mcp.NewTool("get_contact",
		mcp.WithDescription("Read one contact including its full note history."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Contact id")),
	), s.getContact)

	s.mcp.AddTool(mcp.NewTool("add_contact_note",
		mcp.WithDescription("Prepend a free-text note to a contact's history. "+
			"Read the note format first via the "+NoteFormatURI+" resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Contact id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Plain-text note")),
	), s.addContactNote)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List the user's tags with their colors."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("active_events",
		mcp.WithDescription("List events running at a given time."),
		mcp.WithString("at", mcp.Description("RFC 3339 time, defaults to now")),
	), s.activeEvents)

	s.mcp.AddTool(mcp.NewTool("render_template",
		mcp.WithDescription("Render a message template for a contact. Email bodies include the selected signature."),
		mcp.WithString("contact_id", mcp.Required(), mcp.Description("Recipient contact id")),
		mcp.WithString("template_id", mcp.Description("Template id; empty renders only the greeting subject")),
		mcp.WithString("channel", mcp.Required(), mcp.Description("email or whatsapp")),
	), s.renderTemplate)

	s.mcp.AddTool(mcp.NewTool("trigger_sync",
		mcp.WithDescription("Ask every domain to refetch from the server."),
	), s.triggerSync)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Returns the contact note format. Call this before adding notes."),
	), s.getNoteFormat)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Contact Note Format",
			mcp.WithResourceDescription("How contact note history entries are written."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows := s.sess.Contacts.Rows()
	if tag := req.GetString("tag_id", ""); tag != "" {
		rows = s.sess.Contacts.WithTag(tag)
	}
	if rows == nil {
		rows = []models.Contact{}
	}
	return jsonResult(rows)
}

func (s *Server) searchContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows := s.sess.Contacts.Search(query)
	if len(rows) == 0 {
		return mcp.NewToolResultText("no contacts found"), nil
	}
	return jsonResult(rows)
}

func (s *Server) getContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, ok := s.sess.Contacts.Find(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(c)
}

func (s *Server) addContactNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.sess.Contacts.AppendNote(ctx, id, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entry)
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags := s.sess.Tags.Rows()
	if tags == nil {
		tags = []models.Tag{}
	}
	return jsonResult(tags)
}

func (s *Server) activeEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	at := s.now()
	if raw := req.GetString("at", ""); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return mcp.NewToolResultError("at must be an RFC 3339 time"), nil
		}
		at = t
	}
	events := s.sess.Events.ActiveAt(at)
	if len(events) == 0 {
		return mcp.NewToolResultText("no active events"), nil
	}
	return jsonResult(events)
}

func (s *Server) renderTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contactID, err := req.RequireString("contact_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channel, err := req.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := s.sess.Compose(contactID, req.GetString("template_id", ""), channel)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(msg)
}

func (s *Server) triggerSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.bus == nil {
		return mcp.NewToolResultError("sync bus unavailable"), nil
	}
	s.bus.SyncNow()
	return mcp.NewToolResultText("sync requested"), nil
}

func (s *Server) getNoteFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
