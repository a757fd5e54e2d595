package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Opt is a single command-line option
type Opt struct {
	DestP interface{} // pointer to the destination

	Flag       string
	Hidden     bool
	Persistent bool
	Required   bool
	Short      rune // using rune b/c it guarantees correctness. a short must always be a string of length 1

	Default interface{}
	Desc    string
}

// Program parses CLI options
type Program struct {
	// Run is invoked by cobra on execute.
	Run func() error
	// Name is the name of the program in help usage and the env var prefix.
	Name string
	// Opts are the command line/env var options to the program
	Opts []Opt
}

// NewCommand creates a new cobra command to be executed that respects env vars
// and an optional config file.
//
// Uses the upper-case version of the program's name as a prefix
// to all environment variables. The config file is found through
// <NAME>_CONFIG_PATH, which may name a file or a directory holding
// config.{json,toml,yaml,yml}; the working directory is searched otherwise.
func NewCommand(v *viper.Viper, p *Program) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:  p.Name,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return p.Run()
		},
	}

	v.SetEnvPrefix(strings.ToUpper(p.Name))
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := initializeConfig(v); err != nil {
		return nil, err
	}
	if err := BindOptions(v, cmd, p.Opts); err != nil {
		return nil, err
	}
	return cmd, nil
}

func initializeConfig(v *viper.Viper) error {
	configPath := v.GetString("CONFIG_PATH")
	if configPath == "" {
		// Default to looking in the working directory of the running process.
		configPath = "."
	}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".json", ".toml", ".yaml", ".yml":
		v.SetConfigFile(configPath)
	default:
		v.AddConfigPath(configPath)
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// BindOptions adds opts to the specified command and automatically
// registers those options with viper. Values found in the environment or
// config file become the flag defaults, so explicit flags still win.
func BindOptions(v *viper.Viper, cmd *cobra.Command, opts []Opt) error {
	for _, o := range opts {
		flagset := cmd.Flags()
		if o.Persistent {
			flagset = cmd.PersistentFlags()
		}
		envVal := lookupEnv(v, o)
		hasShort := o.Short != 0

		switch destP := o.DestP.(type) {
		case *string:
			d := cast.ToString(o.Default)
			if hasShort {
				flagset.StringVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.StringVar(destP, o.Flag, d, o.Desc)
			}
			if envVal != nil {
				*destP = cast.ToString(envVal)
			}
		case *int:
			d := cast.ToInt(o.Default)
			if hasShort {
				flagset.IntVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.IntVar(destP, o.Flag, d, o.Desc)
			}
			if envVal != nil {
				*destP = cast.ToInt(envVal)
			}
		case *int32:
			d := cast.ToInt32(o.Default)
			if hasShort {
				flagset.Int32VarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.Int32Var(destP, o.Flag, d, o.Desc)
			}
			if envVal != nil {
				*destP = cast.ToInt32(envVal)
			}
		case *int64:
			d := cast.ToInt64(o.Default)
			if hasShort {
				flagset.Int64VarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.Int64Var(destP, o.Flag, d, o.Desc)
			}
			if envVal != nil {
				*destP = cast.ToInt64(envVal)
			}
		case *bool:
			d := cast.ToBool(o.Default)
			if hasShort {
				flagset.BoolVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.BoolVar(destP, o.Flag, d, o.Desc)
			}
			if envVal != nil {
				*destP = cast.ToBool(envVal)
			}
		case *time.Duration:
			d := cast.ToDuration(o.Default)
			if hasShort {
				flagset.DurationVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.DurationVar(destP, o.Flag, d, o.Desc)
			}
			if envVal != nil {
				*destP = cast.ToDuration(envVal)
			}
		case *[]string:
			d := cast.ToStringSlice(o.Default)
			if hasShort {
				flagset.StringSliceVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.StringSliceVar(destP, o.Flag, d, o.Desc)
			}
			if envVal != nil {
				*destP = cast.ToStringSlice(envVal)
			}
		case *zapcore.Level:
			var d zapcore.Level
			if o.Default != nil {
				if l, ok := o.Default.(zapcore.Level); ok {
					d = l
				} else if err := d.Set(cast.ToString(o.Default)); err != nil {
					return fmt.Errorf("invalid default for log level flag %q: %w", o.Flag, err)
				}
			}
			*destP = d
			flagset.VarP((*levelValue)(destP), o.Flag, shortOf(o), o.Desc)
			if envVal != nil {
				if err := destP.Set(cast.ToString(envVal)); err != nil {
					return fmt.Errorf("invalid value for %q: %w", o.Flag, err)
				}
			}
		case pflag.Value:
			if o.Default != nil {
				_ = destP.Set(cast.ToString(o.Default))
			}
			flagset.VarP(destP, o.Flag, shortOf(o), o.Desc)
			if envVal != nil {
				if err := destP.Set(cast.ToString(envVal)); err != nil {
					return fmt.Errorf("invalid value for %q: %w", o.Flag, err)
				}
			}
		default:
			// if you get here, add the missing destination type above.
			return fmt.Errorf("unknown destination type %T", o.DestP)
		}

		if err := v.BindPFlag(o.Flag, flagset.Lookup(o.Flag)); err != nil {
			return err
		}
		if o.Hidden {
			if err := flagset.MarkHidden(o.Flag); err != nil {
				return err
			}
		}
		if o.Required && envVal == nil {
			if err := cobra.MarkFlagRequired(flagset, o.Flag); err != nil {
				return err
			}
		}
	}
	return nil
}

// lookupEnv returns the value for o found in the environment or config
// file, or nil when neither sets it.
func lookupEnv(v *viper.Viper, o Opt) interface{} {
	if !v.IsSet(o.Flag) {
		return nil
	}
	return v.Get(o.Flag)
}

func shortOf(o Opt) string {
	if o.Short == 0 {
		return ""
	}
	return string(o.Short)
}

// levelValue adapts zapcore.Level to pflag.Value.
type levelValue zapcore.Level

func (l *levelValue) String() string {
	return zapcore.Level(*l).String()
}

func (l *levelValue) Set(s string) error {
	var level zapcore.Level
	if err := level.Set(s); err != nil {
		return fmt.Errorf("unknown log level; supported levels are debug, info, warn, error")
	}
	*l = levelValue(level)
	return nil
}

func (l *levelValue) Type() string {
	return "Log-Level"
}
