package main

import (
	"math"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dgryski/go-efilz"
)

const (
	EnvVarPrefix = "EFILZ"

	DefaultVariant       = "uefi"
	DefaultLogLevel      = "info"
	DefaultMaxOutputSize = 256 << 20

	MinMaxOutputSize = 1
	MaxMaxOutputSize = math.MaxUint32
)

var (
	// VERSION gets set during build
	VERSION = "0.0.0"
)

type Config struct {
	CLI  *CLI
	TOML *TOML

	// Resolved from CLI and TOML; a flag wins over the file.
	Variant       efilz.Variant
	MaxOutputSize int64
	LogLevel      logrus.Level
}

type TOML struct {
	Decompress *TOMLDecompress `toml:"decompress"`
	Log        *TOMLLog        `toml:"log"`
}

type TOMLDecompress struct {
	Variant       string `toml:"variant"`
	MaxOutputSize int64  `toml:"max_output_size"`
}

type TOMLLog struct {
	Level string `toml:"level"`
}

type CLI struct {
	Input      string `kong:"arg,optional,help='Compressed input file, stdin when omitted or -'"`
	Output     string `kong:"help='Output file, stdout when omitted or -',short='o'"`
	Algorithm  string `kong:"help='Variant: uefi, efi, classic or tiano (default uefi)',short='a'"`
	ConfigFile string `kong:"help='Path to a TOML config file',type='path',short='c'"`
	Info       bool   `kong:"help='Print the stream header and exit',short='i'"`
	MaxOutput  int64  `kong:"help='Refuse streams that expand beyond this many bytes',short='m'"`
	CPUProfile string `kong:"help='Write a CPU profile to this file',name='cpuprofile'"`

	Debug   bool             `kong:"help='Enable debug output',short='d'"`
	Version kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`
}

func NewConfig(args []string) (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	cli, err := readCLIArgs(args)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing CLI args")
	}

	tomlConfig := &TOML{}
	if cli.ConfigFile != "" {
		tomlConfig, err = readTOML(cli.ConfigFile)
		if err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	} else if err := setTOMLDefaults(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error setting TOML defaults")
	}

	return resolve(cli, tomlConfig)
}

// resolve merges CLI and TOML settings into the effective config.
func resolve(cli *CLI, t *TOML) (*Config, error) {
	if err := validateCLIArgs(cli); err != nil {
		return nil, errors.Wrap(err, "error validating CLI args")
	}

	if err := validateTOML(t); err != nil {
		return nil, errors.Wrap(err, "error validating TOML config")
	}

	cfg := &Config{
		CLI:           cli,
		TOML:          t,
		MaxOutputSize: t.Decompress.MaxOutputSize,
	}

	name := t.Decompress.Variant
	if cli.Algorithm != "" {
		name = cli.Algorithm
	}
	v, err := efilz.ParseVariant(name)
	if err != nil {
		return nil, errors.Wrap(err, "error resolving variant")
	}
	cfg.Variant = v

	if cli.MaxOutput != 0 {
		cfg.MaxOutputSize = cli.MaxOutput
	}

	cfg.LogLevel, err = logrus.ParseLevel(t.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing log.level")
	}
	if cli.Debug {
		cfg.LogLevel = logrus.DebugLevel
	}

	return cfg, nil
}

func readCLIArgs(args []string) (*CLI, error) {
	cli := &CLI{}

	k, err := kong.New(cli,
		kong.Name("efilz"),
		kong.Description("Decompress EFI/UEFI and Tiano compressed firmware payloads"),
		kong.UsageOnError(),
		kong.DefaultEnvars(EnvVarPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"version": VERSION,
		})
	if err != nil {
		return nil, errors.Wrap(err, "error building CLI parser")
	}

	if _, err := k.Parse(args); err != nil {
		return nil, errors.Wrap(err, "error parsing args")
	}

	return cli, nil
}

func readTOML(file string) (*TOML, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}

	tomlConfig := &TOML{}

	if err := toml.Unmarshal(data, tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error parsing TOML config")
	}

	if err := setTOMLDefaults(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error setting TOML defaults")
	}

	if err := validateTOML(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error validating TOML config")
	}

	return tomlConfig, nil
}

func setTOMLDefaults(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if t.Decompress == nil {
		t.Decompress = &TOMLDecompress{}
	}

	if t.Log == nil {
		t.Log = &TOMLLog{}
	}

	if t.Decompress.Variant == "" {
		t.Decompress.Variant = DefaultVariant
	}

	if t.Decompress.MaxOutputSize == 0 {
		t.Decompress.MaxOutputSize = DefaultMaxOutputSize
	}

	if t.Log.Level == "" {
		t.Log.Level = DefaultLogLevel
	}

	return nil
}

func validateTOML(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if t.Decompress == nil {
		return errors.New("decompress cannot be empty")
	}

	if _, err := efilz.ParseVariant(t.Decompress.Variant); err != nil {
		return errors.Wrap(err, "decompress.variant is invalid")
	}

	if err := validateMaxOutputSize(t.Decompress.MaxOutputSize); err != nil {
		return errors.Wrap(err, "decompress.max_output_size is invalid")
	}

	if t.Log == nil {
		return errors.New("log cannot be empty")
	}

	if _, err := logrus.ParseLevel(t.Log.Level); err != nil {
		return errors.Wrap(err, "log.level is invalid")
	}

	return nil
}

func validateCLIArgs(cli *CLI) error {
	if cli == nil {
		return errors.New("config cannot be nil")
	}

	if cli.MaxOutput != 0 {
		if err := validateMaxOutputSize(cli.MaxOutput); err != nil {
			return errors.Wrap(err, "--max-output is invalid")
		}
	}

	if cli.Algorithm != "" {
		if _, err := efilz.ParseVariant(cli.Algorithm); err != nil {
			return errors.Wrap(err, "--algorithm is invalid")
		}
	}

	return nil
}

func validateMaxOutputSize(n int64) error {
	if n < MinMaxOutputSize || n > MaxMaxOutputSize {
		return errors.Errorf("must be between %d and %d", MinMaxOutputSize, int64(MaxMaxOutputSize))
	}
	return nil
}
