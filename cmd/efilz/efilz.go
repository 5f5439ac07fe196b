package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dgryski/go-efilz"
)

// Exit codes.
const (
	exitOK = iota
	exitUsage
	exitInvalidSrcSize
	exitInvalidDstSize
	exitMalformed
)

func main() {
	cfg, err := NewConfig(os.Args[1:])
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(exitUsage)
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(cfg.LogLevel)

	os.Exit(run(cfg))
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "ERROR:", err)
}

func run(cfg *Config) int {
	llog := logrus.WithFields(logrus.Fields{
		"pkg":     "main",
		"variant": cfg.Variant.String(),
	})

	if cfg.CLI.CPUProfile != "" {
		f, err := os.Create(cfg.CLI.CPUProfile)
		if err != nil {
			llog.Errorf("unable to create cpu profile: %s", err)
			return exitUsage
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			llog.Errorf("unable to start cpu profile: %s", err)
			return exitUsage
		}
		defer pprof.StopCPUProfile()
	}

	src, err := readInput(cfg.CLI.Input)
	if err != nil {
		llog.Errorf("error during read: %s", err)
		return exitUsage
	}
	llog.Debugf("read %d bytes from '%s'", len(src), displayName(cfg.CLI.Input))

	if cfg.CLI.Info {
		if err := printInfo(os.Stdout, src); err != nil {
			llog.Errorf("unable to read header: %s", err)
			return exitCode(err)
		}
		return exitOK
	}

	dst, err := decompress(cfg, src, llog)
	if err != nil {
		llog.Errorf("unable to decompress '%s': %s", displayName(cfg.CLI.Input), err)
		return exitCode(err)
	}

	if err := writeOutput(cfg.CLI.Output, dst); err != nil {
		llog.Errorf("error during write: %s", err)
		return exitUsage
	}
	llog.Debugf("wrote %d bytes to '%s'", len(dst), displayName(cfg.CLI.Output))

	return exitOK
}

// decompress checks the header against the configured limit and expands src.
func decompress(cfg *Config, src []byte, llog *logrus.Entry) ([]byte, error) {
	hdr, err := efilz.ReadHeader(src)
	if err != nil {
		return nil, errors.Wrap(err, "invalid header")
	}

	llog.WithFields(logrus.Fields{
		"compressed_size": hdr.CompressedSize,
		"original_size":   hdr.OriginalSize,
	}).Debug("parsed header")

	if int64(hdr.OriginalSize) > cfg.MaxOutputSize {
		return nil, errors.Errorf("original size %d exceeds max output size %d", hdr.OriginalSize, cfg.MaxOutputSize)
	}

	dst := make([]byte, hdr.OriginalSize)
	if err := efilz.DecompressInto(src, dst, cfg.Variant); err != nil {
		return nil, errors.Wrap(err, "decompression failed")
	}

	return dst, nil
}

func printInfo(w io.Writer, src []byte) error {
	hdr, err := efilz.ReadHeader(src)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "compressed size: %d\noriginal size:   %d\ninput size:      %d\n",
		hdr.CompressedSize, hdr.OriginalSize, len(src))
	return err
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, efilz.ErrInvalidSrcSize):
		return exitInvalidSrcSize
	case errors.Is(err, efilz.ErrInvalidDstSize):
		return exitInvalidDstSize
	case errors.Is(err, efilz.ErrMalformedSrcData):
		return exitMalformed
	}
	return exitUsage
}

func readInput(name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func writeOutput(name string, data []byte) error {
	if name == "" || name == "-" {
		stdout := bufio.NewWriter(os.Stdout)
		if _, err := stdout.Write(data); err != nil {
			return err
		}
		return stdout.Flush()
	}
	return os.WriteFile(name, data, 0o644)
}

func displayName(name string) string {
	if name == "" || name == "-" {
		return "stdio"
	}
	return name
}
