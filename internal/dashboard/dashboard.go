package dashboard

import "context"

// Dashboard bundles the live-analysis surface: the HTTP server, the
// run/report store behind it, the SSE hub and the event emitter the
// watch loop publishes through.
type Dashboard struct {
	Server  *Server
	Store   *Store
	Hub     *Hub
	Emitter *Emitter
}

// New wires a dashboard around one shared store and hub, so API reads
// and SSE pushes see the same runs.
func New(config *Config) *Dashboard {
	store := NewStore()
	hub := NewHub()
	return &Dashboard{
		Server:  NewServer(config, store, hub),
		Store:   store,
		Hub:     hub,
		Emitter: NewEmitter(store, hub),
	}
}

// Start serves until Stop is called or the listener fails.
func (d *Dashboard) Start() error {
	return d.Server.Start()
}

// Stop closes every SSE stream, then shuts the server down.
func (d *Dashboard) Stop(ctx context.Context) error {
	return d.Server.Stop(ctx)
}
