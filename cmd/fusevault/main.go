package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fusevault/fusevault/otp"
	"github.com/fusevault/fusevault/tee/teeregistry"

	_ "github.com/fusevault/fusevault/tee/emulator"
	_ "github.com/fusevault/fusevault/tee/grpctee"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "backends":
		for _, b := range teeregistry.List(teeregistry.UsageCLI) {
			if b.Description == "" {
				fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	case "version":
		return cmdVersion(args[1:], out, errOut)
	case "read":
		return cmdRead(args[1:], out, errOut)
	case "write":
		return cmdWrite(args[1:], out, errOut)
	case "invalidate":
		return cmdInvalidate(args[1:], out, errOut)
	case "is-valid":
		return cmdBoolQuery("is-valid", args[1:], out, errOut)
	case "is-written":
		return cmdBoolQuery("is-written", args[1:], out, errOut)
	case "lock":
		return cmdLock(args[1:], out, errOut)
	case "is-locked":
		return cmdBoolQuery("is-locked", args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "fusevault: client for TEE-backed one-time-programmable storage")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fusevault backends")
	fmt.Fprintln(w, "  fusevault version    [--backend <name>] [backend flags]")
	fmt.Fprintln(w, "  fusevault read       --id <n> [--cap <bytes>] [--raw] [--backend <name>]")
	fmt.Fprintln(w, "  fusevault write      --id <n> (--hex <bytes> | --data <string>) [--backend <name>]")
	fmt.Fprintln(w, "  fusevault invalidate --id <n> [--backend <name>]")
	fmt.Fprintln(w, "  fusevault is-valid   --id <n> [--backend <name>]")
	fmt.Fprintln(w, "  fusevault is-written --id <n> [--backend <name>]")
	fmt.Fprintln(w, "  fusevault lock       [--backend <name>]")
	fmt.Fprintln(w, "  fusevault is-locked  [--backend <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - writes are one-time: a written field can be invalidated but never rewritten")
	fmt.Fprintln(w, "  - lock is global and irreversible; queries stay available afterwards")
	fmt.Fprintln(w, "  - read prints hex unless --raw is given")
}

// newFlagSet builds a per-subcommand flag set carrying the shared backend
// selection plus all backend-registered flags.
func newFlagSet(name string, errOut io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	backend := fs.String("backend", "grpc", "transport backend name (see 'fusevault backends')")
	teeregistry.RegisterFlags(fs, teeregistry.UsageCLI)
	return fs, backend
}

// openClient opens the selected transport and a session over it. The
// returned cleanup closes both.
func openClient(backend string) (*otp.Client, func(), error) {
	transport, closeFn, err := teeregistry.Open(backend, teeregistry.UsageCLI)
	if err != nil {
		return nil, nil, err
	}
	client, err := otp.Open(transport)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
		if closeFn != nil {
			_ = closeFn()
		}
	}
	return client, cleanup, nil
}

func cmdVersion(args []string, out io.Writer, errOut io.Writer) int {
	fs, backend := newFlagSet("version", errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	client, cleanup, err := openClient(*backend)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	v, err := client.Version()
	if err != nil {
		fmt.Fprintf(errOut, "version: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "peer %s (client %d.%d)\n", v, otp.ProtocolMajor, otp.ProtocolMinor)
	return 0
}

func cmdRead(args []string, out io.Writer, errOut io.Writer) int {
	fs, backend := newFlagSet("read", errOut)
	id := fs.Uint("id", 0, "field id")
	capacity := fs.Int("cap", 64, "read capacity in bytes")
	raw := fs.Bool("raw", false, "write raw bytes to stdout instead of hex")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	client, cleanup, err := openClient(*backend)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	data, err := client.Read(otp.FieldID(*id), *capacity)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	if *raw {
		_, _ = out.Write(data)
		return 0
	}
	fmt.Fprintf(out, "%s\n", hex.EncodeToString(data))
	return 0
}

func cmdWrite(args []string, out io.Writer, errOut io.Writer) int {
	fs, backend := newFlagSet("write", errOut)
	id := fs.Uint("id", 0, "field id")
	hexData := fs.String("hex", "", "payload as hex")
	strData := fs.String("data", "", "payload as a literal string")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var payload []byte
	switch {
	case *hexData != "" && *strData != "":
		fmt.Fprintln(errOut, "--hex and --data are mutually exclusive")
		return 2
	case *hexData != "":
		b, err := hex.DecodeString(strings.TrimSpace(*hexData))
		if err != nil {
			fmt.Fprintf(errOut, "invalid --hex: %v\n", err)
			return 2
		}
		payload = b
	case *strData != "":
		payload = []byte(*strData)
	default:
		fmt.Fprintln(errOut, "missing --hex or --data")
		return 2
	}

	client, cleanup, err := openClient(*backend)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	if err := client.Write(otp.FieldID(*id), payload); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "wrote %d bytes to field %d\n", len(payload), *id)
	return 0
}

func cmdInvalidate(args []string, out io.Writer, errOut io.Writer) int {
	fs, backend := newFlagSet("invalidate", errOut)
	id := fs.Uint("id", 0, "field id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	client, cleanup, err := openClient(*backend)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	if err := client.Invalidate(otp.FieldID(*id)); err != nil {
		fmt.Fprintf(errOut, "invalidate: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "invalidated field %d\n", *id)
	return 0
}

func cmdLock(args []string, out io.Writer, errOut io.Writer) int {
	fs, backend := newFlagSet("lock", errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	client, cleanup, err := openClient(*backend)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	if err := client.Lock(); err != nil {
		fmt.Fprintf(errOut, "lock: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "locked")
	return 0
}

func cmdBoolQuery(name string, args []string, out io.Writer, errOut io.Writer) int {
	fs, backend := newFlagSet(name, errOut)
	var id *uint
	if name != "is-locked" {
		id = fs.Uint("id", 0, "field id")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	client, cleanup, err := openClient(*backend)
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer cleanup()

	var got bool
	switch name {
	case "is-valid":
		got, err = client.IsValid(otp.FieldID(*id))
	case "is-written":
		got, err = client.IsWritten(otp.FieldID(*id))
	case "is-locked":
		got, err = client.IsLocked()
	}
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", name, err)
		return 1
	}
	fmt.Fprintln(out, got)
	return 0
}
