package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/beam-cloud/rcf/pkg/rcf"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultOutputDir = "."
	defaultLogLevel  = "info"
	defaultBufferMiB = 4
)

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	fs := flag.NewFlagSet("rcfextract", flag.ExitOnError)
	fs.Usage = printUsage(fs)

	var (
		outputPath = fs.String("out", getEnvString("RCF_OUTPUT_DIR", defaultOutputDir), "Directory to extract into")
		logLevel   = fs.String("log-level", getEnvString("RCF_LOG_LEVEL", defaultLogLevel), "Log level (debug, info, warn, error, disabled)")
		bufferMiB  = fs.Int("buffer-mib", getEnvInt("RCF_BUFFER_MIB", defaultBufferMiB), "Copy buffer size in MiB")
		strict     = fs.Bool("strict", false, "Fail when a declared offset does not match the archive position")
		verify     = fs.Bool("verify", false, "Check extracted file sizes after extraction")
		list       = fs.Bool("list", false, "List entries without extracting")
	)

	fs.Parse(os.Args[1:])

	if err := rcf.SetLogLevel(*logLevel); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: missing input file\n\n")
		fs.Usage()
		os.Exit(1)
	}
	inputFile := fs.Arg(0)

	if *list {
		listCommand(inputFile)
		return
	}

	start := time.Now()
	report, err := rcf.ExtractArchive(rcf.ExtractOptions{
		InputFile:  inputFile,
		OutputPath: *outputPath,
		BufferSize: *bufferMiB * 1024 * 1024,
		Strict:     *strict,
		Verify:     *verify,
	})
	if err != nil {
		log.Fatal().Err(err).Msgf("unable to extract %s", inputFile)
	}

	log.Info().Msgf("extracted %d files from %s in %v", len(report.Entries), inputFile, time.Since(start))
}

func listCommand(inputFile string) {
	entries, err := rcf.ListArchive(rcf.ListOptions{InputFile: inputFile})
	if err != nil {
		log.Fatal().Err(err).Msgf("unable to read %s", inputFile)
	}

	for _, entry := range entries {
		fmt.Printf("%10d %10s  %s\n", entry.Offset, humanize.Bytes(uint64(entry.Length)), entry.Path)
	}
}

func printUsage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, `rcfextract - extract ATG cement library archives

Usage:
  rcfextract [options] <archive>

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment Variables:
  RCF_OUTPUT_DIR   Output directory (default: .)
  RCF_LOG_LEVEL    Log level (default: info)
  RCF_BUFFER_MIB   Copy buffer size in MiB (default: 4)

`)
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed := parseInt(value); parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func parseInt(s string) int {
	var result int
	fmt.Sscanf(s, "%d", &result)
	return result
}
