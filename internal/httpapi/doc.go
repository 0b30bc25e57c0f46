// Package httpapi serves the daemon to UI clients over HTTP.
//
// Routes live under /api and speak the DTOs from internal/api. Control
// endpoints mirror the IPC surface; /api/events streams queue and job events
// as server-sent events. Every open event stream counts as an attached UI
// client, which suppresses push notifications until it disconnects.
//
// When api.token is configured every route requires an
// "Authorization: Bearer <token>" header.
package httpapi
