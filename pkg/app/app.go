// Package app provides the shared command bootstrap: cobra command wiring,
// flag registration, optional viper config file loading and logger
// initialization.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Asadp3406/bus-tracking/pkg/log"
)

// Options is implemented by each command's aggregated option struct.
type Options interface {
	// AddFlags registers all option flags on the command's flag set.
	AddFlags(fs *pflag.FlagSet)

	// Complete fills in derived defaults after flags are parsed.
	Complete() error

	// Validate checks the final option values.
	Validate() error
}

// RunFunc executes the application after options are resolved.
type RunFunc func() error

// App assembles a runnable command.
type App struct {
	name        string
	short       string
	description string
	options     Options
	logOptions  *log.Options
	run         RunFunc

	configFile string
}

// Option configures an App.
type Option func(*App)

// WithDescription sets the long command description.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions attaches the command's option struct.
func WithOptions(opts Options) Option {
	return func(a *App) { a.options = opts }
}

// WithLogOptions attaches logger options; the logger is initialized from them
// before the run function executes.
func WithLogOptions(opts *log.Options) Option {
	return func(a *App) { a.logOptions = opts }
}

// WithRunFunc sets the application entry point.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.run = run }
}

// NewApp creates an App with the given name and one-line summary.
func NewApp(name, short string, opts ...Option) *App {
	a := &App{
		name:  name,
		short: short,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Command builds the cobra command for the app.
func (a *App) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.short,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCommand(cmd)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&a.configFile, "config", "c", "", "Path to an optional YAML configuration file. Flags take precedence.")
	if a.options != nil {
		a.options.AddFlags(fs)
	}
	if a.logOptions != nil {
		a.logOptions.AddFlags(fs)
	}

	return cmd
}

// Run executes the command and exits the process on failure.
func (a *App) Run() {
	if err := a.Command().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", a.name, err)
		os.Exit(1)
	}
}

func (a *App) runCommand(cmd *cobra.Command) error {
	if err := a.applyConfigFile(cmd.Flags()); err != nil {
		return err
	}

	if a.logOptions != nil {
		log.Init(a.logOptions)
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return fmt.Errorf("failed to complete options: %w", err)
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.run == nil {
		return nil
	}
	return a.run()
}

// applyConfigFile loads the viper config file, if any, and copies its values
// onto flags the user did not set explicitly. Flag names map to config keys
// by replacing '.' separators with nesting (mqtt.broker -> mqtt: {broker:}).
func (a *App) applyConfigFile(fs *pflag.FlagSet) error {
	if a.configFile == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(a.configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", a.configFile, err)
	}

	var applyErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if applyErr != nil || f.Changed || f.Name == "config" {
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		value := v.Get(f.Name)
		var raw string
		switch val := value.(type) {
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			raw = strings.Join(parts, ",")
		default:
			raw = fmt.Sprintf("%v", val)
		}
		if err := fs.Set(f.Name, raw); err != nil {
			applyErr = fmt.Errorf("invalid config value for %s: %w", f.Name, err)
		}
	})

	return applyErr
}
