package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/avalonbus/sim/id"
)

type runFlags struct {
	seed        int64
	maxCycles   uint64
	config      string
	trace       string
	tracePath   string
	logLevel    string
	logEvents   bool
	monitor     bool
	monitorPort int
	openBrowser bool
	uniqueIDs   bool
}

var flags runFlags

var rootCmd = &cobra.Command{
	Use:   "avalonsim",
	Short: "Run self-checking Avalon-ST and Avalon-MM bus scenarios.",
	Long: `avalonsim connects the Avalon bus components to each other and ` +
		`checks that what one side sends is what the other side sees. ` +
		`Defaults can be set with AVALONSIM_* variables in a .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		if flags.uniqueIDs {
			id.UseParallelIDGenerator()
		}
	},
}

func init() {
	loadDotEnv()

	pf := rootCmd.PersistentFlags()
	pf.Int64Var(&flags.seed, "seed", envInt64("AVALONSIM_SEED", 1),
		"Seed of the random stimulus and wait states.")
	pf.Uint64Var(&flags.maxCycles, "max-cycles",
		uint64(envInt64("AVALONSIM_MAX_CYCLES", 1000000)),
		"Give up if the scenario is not done after this many cycles.")
	pf.StringVar(&flags.config, "config", os.Getenv("AVALONSIM_CONFIG"),
		"YAML scenario file.")
	pf.StringVar(&flags.trace, "trace", os.Getenv("AVALONSIM_TRACE"),
		"Record the transactions, either \"csv\" or \"db\".")
	pf.StringVar(&flags.tracePath, "trace-file", "",
		"Trace file name without suffix. A unique name is picked if empty.")
	pf.StringVar(&flags.logLevel, "log-level",
		envString("AVALONSIM_LOG_LEVEL", "warning"),
		"Print diagnostics at or above this level: debug, info or warning. "+
			"At debug, every word and transaction is printed too.")
	pf.BoolVar(&flags.logEvents, "log-events", false,
		"Print every engine event.")
	pf.BoolVar(&flags.monitor, "monitor", false,
		"Serve the monitoring page while the scenario runs.")
	pf.IntVar(&flags.monitorPort, "monitor-port",
		int(envInt64("AVALONSIM_MONITOR_PORT", 0)),
		"Port of the monitoring page. A random port is used if 0.")
	pf.BoolVar(&flags.openBrowser, "open-browser", false,
		"Open the monitoring page in a browser.")
	pf.BoolVar(&flags.uniqueIDs, "unique-ids", false,
		"Give transactions globally unique IDs, so that the traces of "+
			"several runs can be merged.")

	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(reportCmd)
}

// execute runs the command line and exits through atexit so that the trace
// files are flushed.
func execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func loadDotEnv() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "cannot load .env: %v\n", err)
	}
}

func envString(name, fallback string) string {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback
	}

	return v
}

func envInt64(name string, fallback int64) int64 {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback
	}

	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s=%q: %v\n", name, v, err)
		return fallback
	}

	return n
}
