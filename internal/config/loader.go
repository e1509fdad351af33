package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader consults.
const EnvPrefix = "HYPERSPANK"

// Loader handles loading configuration from files, environment and command-line arguments.
type Loader struct {
	out io.Writer
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader. Help text goes to stdout.
func NewLoader() *Loader {
	return &Loader{}
}

// NewLoaderWithOutput creates a Loader that writes help text to out.
func NewLoaderWithOutput(out io.Writer) *Loader {
	return &Loader{out: out}
}

// Load parses command-line arguments, environment variables and the optional
// configuration file to produce a Config. Precedence, highest first: positional
// target, flags, environment, config file, defaults.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand(l.out)
	flagSet := cmd.Flags()
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	if len(args) == 0 {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	positional := flagSet.Args()
	if len(positional) > 1 {
		return nil, fmt.Errorf("expected a single target, got %d arguments: %s", len(positional), strings.Join(positional, " "))
	}

	configPath, err := flagSet.GetString("config")
	if err != nil {
		return nil, err
	}

	v, err := newSettings(flagSet, strings.TrimSpace(configPath))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TargetURL:         strings.TrimSpace(v.GetString("target")),
		KeepAlive:         v.GetBool("keep_alive"),
		ControlThread:     v.GetBool("control_thread"),
		ThreadCount:       v.GetInt("thread_count"),
		RequestsPerThread: v.GetInt("requests_per_thread"),
		DelayDuration:     v.GetInt("delay_duration"),
		BurstSize:         v.GetInt("burst_size"),
		PrintOnIteration:  v.GetInt("print_on_iteration"),
		Timeout:           v.GetDuration("timeout"),
		LogFormat:         strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		ConfigFile:        strings.TrimSpace(configPath),
		Tracing: TracingConfig{
			Endpoint:    strings.TrimSpace(v.GetString("tracing.endpoint")),
			Protocol:    strings.ToLower(strings.TrimSpace(v.GetString("tracing.protocol"))),
			ServiceName: strings.TrimSpace(v.GetString("tracing.service_name")),
			Insecure:    v.GetBool("tracing.insecure"),
			SampleRate:  v.GetFloat64("tracing.sample_rate"),
			Propagate:   v.GetBool("tracing.propagate"),
		},
	}

	if len(positional) == 1 {
		cfg.TargetURL = strings.TrimSpace(positional[0])
	}

	return cfg, nil
}

// newSettings layers the config file and environment beneath the parsed flags.
func newSettings(flagSet *pflag.FlagSet, configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, binding := range flagBindings {
		if err := v.BindPFlag(binding.key, flagSet.Lookup(binding.flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", binding.flag, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	return v, nil
}
