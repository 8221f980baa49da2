// Package httpapi exposes the drug QA service over HTTP.
//
// Routes are registered on a gorilla/mux router and wrapped in a negroni
// middleware chain (panic recovery, request logging, request IDs and a
// per-client rate limit).
//
//	POST /api/ask          {"question": "..."} -> answer with citations
//	POST /api/ask/stream   same input, text/event-stream of fragments
//	GET  /api/search       ?q=&k=&n=&filter=key=value
//	GET  /healthz          store and provider reachability
package httpapi
