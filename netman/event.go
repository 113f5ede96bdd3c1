package netman

// EventKind identifies a connectivity notification from the radio driver.
// The set is closed so the core stays decoupled from any one platform's
// event enum; adapters translate driver events into these.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	// EventStationStarted: the station interface came up.
	EventStationStarted
	// EventStationStopped: the station interface went down.
	EventStationStopped
	// EventGotAddress: association succeeded and an address was acquired.
	EventGotAddress
	// EventLostAddress: the acquired address was lost.
	EventLostAddress
	// EventDisconnected: the access point dropped us; Event.Reason holds
	// the driver-defined cause code.
	EventDisconnected
	// EventAccessPointStarted: the device began serving as its own AP.
	EventAccessPointStarted
	// EventAccessPointStopped: the device stopped serving as an AP.
	EventAccessPointStopped
	// EventScanDone: an access-point scan completed.
	EventScanDone
)

func (k EventKind) String() string {
	switch k {
	case EventStationStarted:
		return "station-started"
	case EventStationStopped:
		return "station-stopped"
	case EventGotAddress:
		return "got-address"
	case EventLostAddress:
		return "lost-address"
	case EventDisconnected:
		return "disconnected"
	case EventAccessPointStarted:
		return "ap-started"
	case EventAccessPointStopped:
		return "ap-stopped"
	case EventScanDone:
		return "scan-done"
	default:
		return "unknown"
	}
}

// Event is a single asynchronous notification from the radio driver.
// Reason carries the platform-defined disconnect cause for
// EventDisconnected and is zero for every other kind. The core stores and
// exposes reason codes verbatim without interpreting them.
type Event struct {
	Kind   EventKind
	Reason int
}
