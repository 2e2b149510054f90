package usbhost

// NoDriver marks an interface that no registered Driver claimed.
const NoDriver = 0xFF

// Interface is one interface of a device's active configuration: its
// endpoints instantiated as local Pipes (the host talks to endpoints
// through pipes, never directly) plus whichever Driver claimed it.
type Interface struct {
	Endpoints  [MaxEndpointsPerInterface]Pipe
	NumEps     uint8
	DriverIdx  int // index into the registry, or NoDriver
	Class      ClassCode
	SubClass   SubClass
	Protocol   uint8
}

func (i *Interface) reset() {
	*i = Interface{DriverIdx: NoDriver}
}

// releaseEndpoints tears down every pipe configured so far on this
// interface; used both on normal release and when endpoint configuration
// fails partway through, mirroring _release_iface_endpoints.
func (i *Interface) releaseEndpoints(pp *PipePool) {
	for e := uint8(0); e < i.NumEps; e++ {
		pp.Deallocate(&i.Endpoints[e])
	}
}
