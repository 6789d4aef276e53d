package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chrissnell/wtfrecharge/internal/app"
	"github.com/chrissnell/wtfrecharge/internal/constants"
	"github.com/chrissnell/wtfrecharge/internal/loader"
	"github.com/chrissnell/wtfrecharge/internal/log"
	"github.com/chrissnell/wtfrecharge/pkg/config"
	"github.com/chrissnell/wtfrecharge/pkg/responseformat"
)

func main() {
	cfgFile := flag.String("config", "", "Path to YAML configuration (optional; engine defaults otherwise)")
	input := flag.String("input", "", "CSV of water levels; overrides input.path from the configuration")
	sy := flag.Float64("sy", 0, "Fixed specific yield; overrides specific-yield from the configuration")
	format := flag.String("format", "json", "Output format: 'json' or 'msgpack'")
	output := flag.String("output", "", "Write the report to this file instead of stdout")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wtf-recharge %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	outFormat, err := responseformat.ParseFormat(*format)
	if err != nil {
		log.Fatalf("%v", err)
	}

	provider, cfgData, err := loadConfig(*cfgFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *input != "" {
		cfgData.Input.Path = *input
	}
	if *sy != 0 {
		cfgData.SpecificYield = config.SpecificYieldData{Type: "fixed", Value: *sy}
	}
	if cfgData.Input.Path == "" {
		log.Fatalf("no input series: pass -input or set input.path in the configuration")
	}

	ts, err := loader.ReadCSVFile(cfgData.Input.Path, loader.CSVOptions{
		TimeColumn:  cfgData.Input.TimeColumn,
		LevelColumn: cfgData.Input.LevelColumn,
		TimeFormat:  cfgData.Input.TimeFormat,
	})
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	if cfgData.Name == "" {
		cfgData.Name = filepath.Base(cfgData.Input.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := app.New(provider, log.GetSugaredLogger()).Estimate(ctx, cfgData, ts)
	if err != nil {
		log.Fatalf("Recharge estimate failed: %v", err)
	}

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}
	if err := responseformat.NewFormatter(true).Encode(out, outFormat, report); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}

// loadConfig reads cfgFile when given. Without one, an empty configuration selects the
// engine defaults.
func loadConfig(cfgFile string) (config.ConfigProvider, *config.ConfigData, error) {
	if cfgFile == "" {
		return nil, &config.ConfigData{}, nil
	}
	filename, _ := filepath.Abs(cfgFile)

	provider := config.NewYAMLProvider(filename)
	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return provider, cfgData, nil
}
