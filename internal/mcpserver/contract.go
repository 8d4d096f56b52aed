package mcpserver

// NoteFormatContract describes how contact notes are stored so that LLM
// consumers write entries that the confirmation flow can parse back.
const NoteFormatContract = `# Synka Contact Note Format

Each contact carries a ` + "`" + `notes_history` + "`" + ` list. Entries are ordered newest first.

## Entry

` + "```" + `json
{"text": "Call Made - asked for the pricing sheet", "timestamp": "2026-03-01T09:02:00Z"}
` + "```" + `

## Rules

1. **Newest first.** New entries are prepended; never append to the end.
2. **Timestamps** are RFC 3339 in UTC.
3. **System prefixes.** Confirmed interactions start with one of
   ` + "`" + `Call Made` + "`" + `, ` + "`" + `Email Sent` + "`" + ` or ` + "`" + `WhatsApp Sent` + "`" + `.
   Extra detail follows after ` + "`" + ` - ` + "`" + ` (space, hyphen, space).
4. **Free notes** must not start with a system prefix, or they will be shown as
   an interaction.
5. **Plain text only.** No Markdown or HTML.

Use the ` + "`" + `add_contact_note` + "`" + ` tool to add a free note. Interactions are
recorded by the application itself after the user confirms them.
`
