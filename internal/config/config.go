// Package config holds the boot-time parameters cmd/kernel populates from
// Cobra/pflag flags, matching ja7ad/consumption's pattern of a plain opts
// struct filled by *cobra.Command.Flags() rather than a config file —
// Biscuit itself only ever configures CPU count, AP limit, and a boot
// image path, so this stays proportionate to that: memory size, the
// backing disk image, initial niceness, and log verbosity.
package config

import "github.com/spf13/cobra"

// Config is the set of values cmd/kernel needs before it can boot a
// Kernel, matching spec.md section 2's described inputs.
type Config struct {
	MemMB    int    // total simulated physical memory, in megabytes
	DiskPath string // path to the backing disk image (flat or qcow2)
	QCOW2    bool   // treat DiskPath as qcow2 rather than a flat image
	NiceInit int32  // niceness assigned to the init task
	LogLevel string // klog level name: debug, info, warn, error
}

// Default returns the configuration cmd/kernel falls back to absent any
// flags, sized the way Biscuit's own defaults are modest (no multi-GB
// default simulated memory).
func Default() Config {
	return Config{
		MemMB:    64,
		DiskPath: "",
		QCOW2:    false,
		NiceInit: 0,
		LogLevel: "info",
	}
}

// BindFlags registers every flag this Config understands onto cmd's flag
// set, writing results directly into cfg, mirroring
// ja7ad/consumption/cmd/consumption's root.Flags().*Var calls.
func BindFlags(cmd *cobra.Command, cfg *Config) {
	cmd.Flags().IntVar(&cfg.MemMB, "mem-mb", cfg.MemMB, "simulated physical memory, in megabytes")
	cmd.Flags().StringVar(&cfg.DiskPath, "disk", cfg.DiskPath, "path to the backing disk image (empty to boot without a block device)")
	cmd.Flags().BoolVar(&cfg.QCOW2, "qcow2", cfg.QCOW2, "treat --disk as a qcow2 image instead of a flat image")
	cmd.Flags().Int32Var(&cfg.NiceInit, "nice-init", cfg.NiceInit, "niceness assigned to the init task")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "klog level: debug, info, warn, error")
}

// NFrames converts MemMB into a frame count at the teacher's page size
// (4 KiB), the unit internal/vmm.NewFrameAllocator expects.
func (c Config) NFrames() uint32 {
	const pageSize = 4096
	return uint32(c.MemMB) * (1 << 20) / pageSize
}
