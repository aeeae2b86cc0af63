// Command kernel boots one instance of the hosted kernel simulation:
// physical memory, the scheduler, the VFS mount tree (rootfs + devfs,
// optionally an IDE-backed disk), the syscall dispatcher, and the init
// task, then blocks forever the way original_source's own boot sequence
// "sleeps forever" once its init process is running (justanotherdot-biscuit's
// main() ends the same way, on an unbuffered channel receive).
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dionysus-os/kernel/internal/block"
	"github.com/dionysus-os/kernel/internal/blockdrv/ide"
	"github.com/dionysus-os/kernel/internal/chardev"
	"github.com/dionysus-os/kernel/internal/common"
	"github.com/dionysus-os/kernel/internal/config"
	"github.com/dionysus-os/kernel/internal/devfs"
	"github.com/dionysus-os/kernel/internal/devreg"
	"github.com/dionysus-os/kernel/internal/diskimg"
	"github.com/dionysus-os/kernel/internal/hal"
	"github.com/dionysus-os/kernel/internal/klog"
	"github.com/dionysus-os/kernel/internal/perf"
	"github.com/dionysus-os/kernel/internal/rootfs"
	"github.com/dionysus-os/kernel/internal/sched"
	"github.com/dionysus-os/kernel/internal/syscall"
	"github.com/dionysus-os/kernel/internal/vfs"
	"github.com/dionysus-os/kernel/internal/vmm"
)

const (
	ttyMajor = 1
	ideMajor = 2
	sectorSz = 512
)

func main() {
	cfg := config.Default()
	root := &cobra.Command{
		Use:   "kernel",
		Short: "boot a hosted Dionysus kernel simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return boot(cfg)
		},
	}
	config.BindFlags(root, &cfg)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func boot(cfg config.Config) error {
	log, err := klog.New(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "boot: build logger")
	}
	defer log.Sync()
	common.InstallPanicker(log)

	log.Infof("booting: %d MB physical memory, init nice=%d", cfg.MemMB, cfg.NiceInit)

	frames := vmm.NewFrameAllocator(cfg.NFrames())
	kdir := vmm.NewPageDirectory(0)

	k := sched.NewKernel(frames, kdir)
	k.Perf = perf.NewSim()
	init := k.InitTasking("init", "/", kdir)
	init.Nice = cfg.NiceInit

	v := vfs.New()

	rfs := rootfs.New()
	v.RegisterFS(rfs.FSType())
	if errno := v.Mount("/", "/", "rootfs", nil, 0); errno.IsErr() {
		return errors.Wrap(errno, "boot: mount rootfs")
	}

	chars := devreg.NewCharRegistry()
	console := hal.NewSimConsole()
	tty := chardev.NewTTY(console, 0)
	if _, errno := chars.Register(ttyMajor, "tty", tty); errno.IsErr() {
		return errors.Wrap(errno, "boot: register tty driver")
	}

	blocks := block.NewRegistry()

	fs := devfs.New(chars, blocks)
	v.RegisterFS(fs.FSType())
	if errno := v.Mount("/", "/dev", "devfs", nil, 0); errno.IsErr() {
		return errors.Wrap(errno, "boot: mount devfs")
	}

	devDir, errno := v.Kopen("/", "/dev", common.ORdonly)
	if errno.IsErr() {
		return errors.Wrap(errno, "boot: open /dev")
	}
	if _, errno := vfs.Create(devDir, "tty", 0, 0, common.SIFCHR|0666, common.MkDev(ttyMajor, 0)); errno.IsErr() {
		return errors.Wrap(errno, "boot: mknod /dev/tty")
	}

	if cfg.DiskPath != "" {
		if err := attachDisk(cfg, blocks, v, devDir, log); err != nil {
			return err
		}
	} else {
		log.Infof("no --disk given, booting without a backing block device")
	}

	elf := hal.NewSimELFLoader()
	disp := syscall.New(k, v, blocks, chars, log, elf)

	log.Infof("init running as pid %d", init.Pid)

	res := disp.Dispatch(init, syscall.SysGetpid, syscall.Args{})
	log.Infof("getpid() -> %d (errno %v)", res.Val, res.Errno)

	// Matches original_source's "sleep forever" once init is handed off —
	// this hosted build has no real interrupt-driven idle loop to fall
	// into, so it simply blocks on an unbuffered receive, same as
	// justanotherdot-biscuit's main().
	var forever chan struct{}
	<-forever
	return nil
}

// attachDisk materializes cfg.DiskPath into a flat sector image — decoding
// through internal/diskimg's qcow2 reader first when --qcow2 is set — and
// wires it up as an IDE-backed block device under /dev, autopopulating its
// partition table from the MBR, per spec.md section 4.6.
func attachDisk(cfg config.Config, blocks *block.Registry, v *vfs.VFS, devDir *vfs.Node, log *klog.Logger) error {
	f, err := os.OpenFile(cfg.DiskPath, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "boot: open disk image")
	}
	defer f.Close()

	var store diskimg.BackingStore
	if cfg.QCOW2 {
		q, err := diskimg.OpenQCOW2(f)
		if err != nil {
			return errors.Wrap(err, "boot: parse qcow2 image")
		}
		store = q
	} else {
		info, err := f.Stat()
		if err != nil {
			return errors.Wrap(err, "boot: stat disk image")
		}
		store = diskimg.NewFlatFile(f, f, uint64(info.Size())/sectorSz)
	}

	nsectors := store.NSectors()
	image := make([]byte, nsectors*sectorSz)
	for sector := uint64(0); sector < nsectors; sector++ {
		if errno := store.ReadAt(image[sector*sectorSz:(sector+1)*sectorSz], sector); errno.IsErr() {
			return errors.Wrap(errno, "boot: materialize disk image")
		}
	}

	ctrl := ide.New(hal.NewSimIDERegisters(image))
	if errno := ctrl.Attach(0, 0, nsectors); errno.IsErr() {
		return errors.Wrap(errno, "boot: attach ide drive")
	}

	major, errno := blocks.Register(ideMajor, "ide")
	if errno.IsErr() {
		return errors.Wrap(errno, "boot: register ide driver")
	}
	dev := block.NewDevice(major, 0, 1, sectorSz, nsectors, ctrl.Backend(0, 0))
	if errno := block.AutopopulateBlkdev(dev); errno.IsErr() {
		return errors.Wrap(errno, "boot: autopopulate ide partition table")
	}
	if errno := blocks.AddDevice(dev); errno.IsErr() {
		return errors.Wrap(errno, "boot: add ide device")
	}
	dev.StartTasklet()

	if _, errno := vfs.Create(devDir, "hda", 0, 0, common.SIFBLK|0660, common.MkDev(major, dev.Minor)); errno.IsErr() {
		return errors.Wrap(errno, "boot: mknod /dev/hda")
	}

	log.Infof("attached disk %s: %d sectors, %d partitions", cfg.DiskPath, nsectors, len(dev.Partitions))
	return nil
}
