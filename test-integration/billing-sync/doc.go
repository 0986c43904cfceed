// Package integration exercises the billing sync server end to end: events
// enter through the HTTP API, batch passes run on the real clock and synced
// state is fetched from a fake billing provider.
package integration
