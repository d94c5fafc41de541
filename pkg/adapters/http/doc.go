// Package http hosts a bot behind a JSON API.
//
// POST /api/messages runs one turn per request and answers with the turn's
// replies. Proactive messages sent outside a request are streamed to
// subscribers of GET /api/conversations/{conversationID}/events.
package http
