// Package radio adapts concrete wireless backends to the connectivity
// manager's Radio contract and translates their notifications into netman
// events. The Pico W adapter drives the CYW43439 chip directly; the host
// adapter steers the system supplicant and a link poller synthesizes
// address events.
package radio

// Synthesized disconnect reason codes. Platforms that report their own
// cause codes pass them through verbatim instead; these cover backends
// whose failures arrive as errors rather than coded events.
const (
	// ReasonJoinFailed: the association request itself failed.
	ReasonJoinFailed = 1
	// ReasonAddressFailed: association succeeded but address acquisition
	// did not complete.
	ReasonAddressFailed = 2
)
