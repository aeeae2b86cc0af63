package block

import (
	"sort"

	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/ksync"
)

// coalesce merges adjacent queued requests whose sectors are contiguous and
// whose flags match, per original_source's collate_requests.
func coalesce(queue []*Request) []*Request {
	if len(queue) == 0 {
		return queue
	}
	out := []*Request{queue[0]}
	for _, req := range queue[1:] {
		prev := out[len(out)-1]
		if prev.FirstSector+prev.NSectors == req.FirstSector && prev.Flags == req.Flags {
			prev.NSectors += req.NSectors
			prev.Bios = append(prev.Bios, req.Bios...)
			continue
		}
		out = append(out, req)
	}
	return out
}

// MakeRequest builds a request against dev's partition, inserts it into the
// device's queue (sorted by FirstSector), coalesces, and invokes the
// driver's handler, per original_source's make_request_blkdev.
func (r *Registry) MakeRequest(devNum common.DevT, firstSector uint64, bios []Bio, write bool) (*Request, common.Errno) {
	if len(bios) == 0 {
		return nil, common.EFAULT
	}
	dev, part := r.GetDevice(devNum)
	if dev == nil || part == nil {
		return nil, common.EINVAL
	}
	if dev.Backend == nil {
		return nil, common.EINVAL
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	if firstSector > part.Size {
		return nil, common.EFAULT
	}

	flags := DirRead
	if write {
		flags = DirWrite
	}
	req := &Request{
		Flags:       flags,
		FirstSector: firstSector + part.Offset,
		Dev:         dev,
		Bios:        append([]Bio(nil), bios...),
		Wq:          ksync.NewWaitqueue(),
		Status:      StatusPending,
	}
	for _, b := range bios {
		req.NSectors += uint64(b.NSectors)
	}
	if firstSector+req.NSectors > part.Size {
		return nil, common.EINVAL
	}

	i := sort.Search(len(dev.queue), func(i int) bool { return dev.queue[i].FirstSector > req.FirstSector })
	dev.queue = append(dev.queue, nil)
	copy(dev.queue[i+1:], dev.queue[i:])
	dev.queue[i] = req

	dev.queue = coalesce(dev.queue)

	dev.wakeTasklet()

	return req, 0
}

// EndRequest advances or drops completed bios and transitions status, per
// original_source's end_request: ok reports whether the transfer
// succeeded; nsectors is how many sectors of the request were actually
// serviced (0 means none, a partial count leaves the request pending for a
// retry by the caller).
func EndRequest(req *Request, ok bool, nsectors uint64) {
	if !ok {
		req.Status = StatusFinished
		req.Retcode = common.EIO
		req.Wq.WakeAll()
		return
	}
	if nsectors >= req.NSectors {
		req.Status = StatusFinished
		req.Retcode = 0
		req.Wq.WakeAll()
		return
	}
	req.FirstSector += nsectors
	req.NSectors -= nsectors
	for left := nsectors; left > 0 && len(req.Bios) > 0; {
		b := &req.Bios[0]
		if uint64(b.NSectors) > left {
			b.Offset += uint32(left) * req.Dev.SectorSize
			b.NSectors -= uint32(left)
			break
		}
		left -= uint64(b.NSectors)
		req.Bios = req.Bios[1:]
	}
	req.Status = StatusPending
}

// WaitRequest blocks until req reaches a terminal status, per
// original_source's wait_request_blkdev.
func WaitRequest(req *Request) common.Errno {
	for req.Status != StatusFinished && req.Status != StatusIntr {
		w := ksync.SleepWaiter(req.Wq, true)
		// Re-check after enqueueing: a completion that ran between the loop
		// test and the enqueue woke nobody.
		if req.Status == StatusFinished || req.Status == StatusIntr {
			break
		}
		interrupted := w.Wait()
		if interrupted && req.Status != StatusFinished {
			req.Status = StatusIntr
			return common.EINTR
		}
	}
	return req.Retcode
}

// wakeTasklet signals the device's driver tasklet goroutine that new work
// is queued. The wake channel holds at most one pending signal: further
// signals are dropped while one is pending, and a device whose tasklet has
// not been started via StartTasklet keeps that one signal until the tasklet
// runs. Requests are only serviced once the tasklet is started.
func (d *Device) wakeTasklet() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// popHead removes and returns the head of the queue, or nil if empty.
func (d *Device) popHead() *Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil
	}
	req := d.queue[0]
	d.queue = d.queue[1:]
	return req
}
