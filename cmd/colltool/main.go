// colltool inspects Skyward Sword collision data: KCL prism meshes, DZB flat
// meshes and their PLC attribute tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/ss-collision/internal/config"
	"github.com/Faultbox/ss-collision/internal/logger"
)

var errUsage = errors.New("usage")

func main() {
	config.ParseFlags()
	if flag.NArg() < 1 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, cfg, os.Stdout, flag.Arg(0), flag.Args()[1:])
	stop()

	if err != nil {
		if !errors.Is(err, errUsage) {
			logger.Debug("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(ctx context.Context, cfg *config.Config, w io.Writer, command string, args []string) error {
	switch command {
	case "info":
		return cmdInfo(cfg, w, args)
	case "dump":
		return cmdDump(w, args)
	case "fields":
		return cmdFields(w)
	case "search", "find":
		return cmdSearch(cfg, w, args)
	case "stats":
		return cmdStats(cfg, w, args)
	case "check":
		return cmdCheck(ctx, cfg, w, args)
	case "render":
		return cmdRender(ctx, cfg, w, args)
	case "help", "-h", "--help":
		printUsage(w)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `colltool - Skyward Sword collision data utility

Usage:
  colltool [global flags] <command> [options]

Commands:
  info <file>                          Show header and section summary (.kcl, .dzb, .plc)
  dump <file.plc>                      Print every attribute record as hex
  fields                               List the attribute field descriptors
  search <field> <value> [dir]         List tables containing a field value
  search -code C -shift S -mask M <value> [dir]
                                       Same, with a raw bitfield
  stats <field> [file.plc|dir]         Histogram of a field's values
  check [dir]                          Pair, decode and validate every file
  render [-o out.webp] <geometry|dir> [table.plc]
                                       Top-down attribute preview (WebP)

Global flags:
  -config <path>   Config file (default ./colltool.yaml)
  -dir <path>      Collision data root
  -workers <n>     Files decoded in parallel
  -max-depth <n>   Maximum octree depth
  -size <px>       Preview size
  -debug           Debug logging
  -log-file <path> Also write JSON logs to a rotating file

Fields may be given by id or name, e.g. 20 or "Ground Type".
Compressed inputs (.gz, .zst, .lz4) are decompressed transparently.

Examples:
  colltool info Stage/F000/rooms/r00/r00.kcl
  colltool search "Ground Type" 0x0C
  colltool -workers 8 check "Collision Files"
  colltool render -field 3 Stage/F000/addon/stage.dzb`)
}
