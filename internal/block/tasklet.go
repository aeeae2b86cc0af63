package block

// NewDevice builds a Device ready for registration, with its wake/done
// signaling channels initialized.
func NewDevice(major, minor, maxPart uint32, sectorSize uint32, nsectors uint64, backend Backend) *Device {
	return &Device{
		Major:      major,
		Minor:      minor,
		MaxPart:    maxPart,
		SectorSize: sectorSize,
		NSectors:   nsectors,
		Backend:    backend,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// StartTasklet launches the device's driver tasklet, a goroutine standing
// in for original_source's kernel-thread request drain loop: each wakeup
// pops requests off the queue head until the queue is empty, transferring
// every bio of each through Backend and calling EndRequest, per spec.md
// section 4.6. Stop via StopTasklet.
func (d *Device) StartTasklet() {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go func() {
		for {
			select {
			case <-done:
				return
			case <-d.wake:
			}
			for {
				req := d.popHead()
				if req == nil {
					break
				}
				d.service(req)
			}
		}
	}()
}

// StopTasklet halts the tasklet goroutine. Queued-but-unstarted requests
// are left pending.
func (d *Device) StopTasklet() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()
	close(d.done)
}

// service transfers every bio in req through the backend in order and ends
// the request, per spec.md's "bios are serviced in list order."
func (d *Device) service(req *Request) {
	req.Status = StatusRunning
	sector := req.FirstSector
	var done uint64
	write := req.Flags == DirWrite
	for _, bio := range req.Bios {
		buf := bio.Buf[bio.Offset : bio.Offset+uint32(bio.NSectors)*d.SectorSize]
		if errno := d.Backend.TransferSectors(sector, buf, write); errno.IsErr() {
			EndRequest(req, false, done)
			return
		}
		sector += uint64(bio.NSectors)
		done += uint64(bio.NSectors)
	}
	EndRequest(req, true, done)
}
