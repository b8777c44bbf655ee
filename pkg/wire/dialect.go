package wire

// Dialect describes how a provider frames its streaming responses.
// The zero value is a plain SSE stream: `data:`-prefixed JSON payloads,
// no done marker, no keepalive comments, no discriminator field.
type Dialect struct {
	// Name identifies the dialect in logs and configuration files.
	Name string `yaml:"name,omitempty"`
	// EventTypeField is the JSON field carrying the event discriminator.
	// When empty the payload carries no explicit type and consumers
	// discriminate by shape.
	EventTypeField string `yaml:"event_type_field,omitempty"`
	// DoneMarker is the sentinel payload signalling end of stream,
	// e.g. "[DONE]". Empty means the stream ends on EOF only.
	DoneMarker string `yaml:"done_marker,omitempty"`
	// SkipKeepalives ignores ":"-prefixed comment lines some providers
	// emit to keep the connection warm.
	SkipKeepalives bool `yaml:"skip_keepalives,omitempty"`
	// BareJSONLines treats unprefixed non-blank lines as JSON payloads.
	// NDJSON bodies (ollama's native chat endpoint) use this.
	BareJSONLines bool `yaml:"bare_json_lines,omitempty"`
}
