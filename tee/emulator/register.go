package emulator

import (
	"flag"

	"github.com/fusevault/fusevault/tee"
	"github.com/fusevault/fusevault/tee/teeregistry"
)

var (
	flagMajor        uint
	flagMinor        uint
	flagMaxFieldSize int
)

func init() {
	teeregistry.MustRegister(teeregistry.Backend{
		Name:        "inmem",
		Description: "in-memory secure peer emulator (state vanishes on exit)",
		Usage:       teeregistry.UsageCLI | teeregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.UintVar(&flagMajor, "inmem-major", 0, "Peer protocol major version; 0 uses the client's (for --backend=inmem)")
			fs.UintVar(&flagMinor, "inmem-minor", 0, "Peer protocol minor version (for --backend=inmem)")
			fs.IntVar(&flagMaxFieldSize, "inmem-max-field-size", 0, "Max field payload bytes; 0 uses the default (for --backend=inmem)")
		},
		Open: func() (tee.Transport, func() error, error) {
			p := New(Options{
				Major:        uint32(flagMajor),
				Minor:        uint32(flagMinor),
				MaxFieldSize: flagMaxFieldSize,
			})
			return p, nil, nil
		},
	})
}
