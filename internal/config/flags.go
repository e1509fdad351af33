package config

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const commandName = "hyperspank"

// flagBindings maps each CLI flag to the settings key it populates. The same
// key is used in config files and, upper-cased with a HYPERSPANK_ prefix and
// dots replaced by underscores, in environment variables.
var flagBindings = []struct {
	flag string
	key  string
}{
	{"target", "target"},
	{"keep-alive", "keep_alive"},
	{"control-thread", "control_thread"},
	{"thread-count", "thread_count"},
	{"requests-per-thread", "requests_per_thread"},
	{"delay-duration", "delay_duration"},
	{"burst-size", "burst_size"},
	{"print-on-iteration", "print_on_iteration"},
	{"timeout", "timeout"},
	{"log-format", "log_format"},
	{"tracing-endpoint", "tracing.endpoint"},
	{"tracing-protocol", "tracing.protocol"},
	{"tracing-service-name", "tracing.service_name"},
	{"tracing-insecure", "tracing.insecure"},
	{"tracing-sample-rate", "tracing.sample_rate"},
	{"tracing-propagate", "tracing.propagate"},
}

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           commandName + " [options] <target>",
		Short:         "Drive an HTTP endpoint with bursts of GET requests from parallel threads",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	if out == nil {
		out = os.Stdout
	}
	cmd.SetOut(out)
	RegisterFlags(cmd)
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("target", "", "Target URL (alternative to the positional <target> argument)")

	// Load shape
	flags.BoolP("keep-alive", "k", false, "Keep connection alive between bursts")
	flags.BoolP("control-thread", "c", false, "Use an aggressive control thread to simulate a single hyperactive client")
	flags.IntP("thread-count", "t", DefaultThreadCount, "The number of threads (not including a control thread)")
	flags.IntP("requests-per-thread", "r", DefaultRequestsPerThread, "The number of requests per thread (may be split over a number of bursts)")
	flags.IntP("delay-duration", "d", DefaultDelayDuration, "The delay (in milliseconds) between bursts on a thread")
	flags.IntP("burst-size", "b", DefaultBurstSize, "The number of requests a thread will send before a delay")
	flags.IntP("print-on-iteration", "p", DefaultPrintOnIteration, "The number of iterations before progress is echoed to the console (0 disables)")
	flags.Duration("timeout", 0, "Per-request timeout (0 means no timeout)")

	// Output
	flags.String("log-format", LogFormatText, "Log output format: 'text' or 'json'")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; enables per-request spans")
	flags.String("tracing-protocol", TracingProtocolGRPC, "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported on spans (default hyperspank)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0-1.0)")
	flags.Bool("tracing-propagate", true, "Inject W3C traceparent headers into requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	displayHelp(newFlagCommand(w))
}
