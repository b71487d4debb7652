package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dygy/drumorb/internal/config"
	"github.com/dygy/drumorb/internal/hits"
	"github.com/dygy/drumorb/internal/midiexport"
	"github.com/dygy/drumorb/internal/oracle"
	"github.com/dygy/drumorb/internal/progress"
	"github.com/dygy/drumorb/internal/server"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "drumorb",
	Short: "Detect drum hits in audio and turn them into pulses and MIDI",
	Long: `drumorb sends audio to an AI drum-transient model, cleans the
returned hit list, and either drives a synchronized web visualizer or
exports the hits as a MIDI file.

Pipeline: audio -> AI transient detection -> hit cleaning -> orbs / MIDI`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface",
	Long: `Start the web interface for uploading audio and watching
synchronized orb pulses during playback.

Example:
  drumorb serve --port 8080`,
	RunE: runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze an audio file and print the cleaned hits",
	Long: `Send an audio file to the detection model and print the cleaned
hit list as JSON.

Examples:
  drumorb analyze --input track.wav
  drumorb analyze -i track.mp3 -o hits.json`,
	RunE: runAnalyze,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Analyze an audio file and write a MIDI file",
	Long: `Send an audio file to the detection model, clean the hits, and
write them as a MIDI file (120 BPM, 4/4, GM percussion mapping).

Examples:
  drumorb export --input track.wav
  drumorb export -i track.mp3 -o drums.mid`,
	RunE: runExport,
}

var (
	flagPort    int
	flagInput   string
	flagOutput  string
	flagVerbose bool
)

func init() {
	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "port to listen on (overrides DRUMORB_PORT)")

	analyzeCmd.Flags().StringVarP(&flagInput, "input", "i", "", "audio file to analyze (required)")
	analyzeCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write hits JSON to file instead of stdout")
	analyzeCmd.MarkFlagRequired("input")

	exportCmd.Flags().StringVarP(&flagInput, "input", "i", "", "audio file to analyze (required)")
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "MIDI output path (default: time-suffixed name)")
	exportCmd.MarkFlagRequired("input")

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose progress output")

	rootCmd.AddCommand(serveCmd, analyzeCmd, exportCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if flagPort != 0 {
		cfg.Port = flagPort
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	return srv.Run()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	reporter := progress.NewReporter(os.Stderr, flagVerbose)

	cleaned, err := analyzeFile(cmd.Context(), reporter, flagInput)
	if err != nil {
		reporter.Error(err)
		return err
	}

	out, err := json.MarshalIndent(cleaned, "", "  ")
	if err != nil {
		return err
	}

	if flagOutput != "" {
		reporter.StartStage(progress.StageExport)
		if err := os.WriteFile(flagOutput, out, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		reporter.StageComplete("%d hits written", len(cleaned))
		reporter.Done(flagOutput)
		return nil
	}

	fmt.Println(string(out))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	reporter := progress.NewReporter(os.Stderr, flagVerbose)

	cleaned, err := analyzeFile(cmd.Context(), reporter, flagInput)
	if err != nil {
		reporter.Error(err)
		return err
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("no drum hits detected in %s", flagInput)
	}

	outPath := flagOutput
	if outPath == "" {
		outPath = midiexport.Filename(time.Now())
	}

	reporter.StartStage(progress.StageExport)
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	if err := midiexport.Write(f, cleaned); err != nil {
		return err
	}
	reporter.StageComplete("%d hits exported", len(cleaned))
	reporter.Done(outPath)
	return nil
}

// analyzeFile runs the oracle + cleaning pass on a local file
func analyzeFile(ctx context.Context, reporter *progress.Reporter, path string) ([]hits.Hit, error) {
	cfg := config.Load()

	reporter.StartStage(progress.StageRead)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	reporter.Update("%d bytes, %s", len(data), mimeType)

	reporter.StartStage(progress.StageAnalyze)
	client := oracle.NewClient(cfg.OracleURL, cfg.OracleAPIKey, cfg.OracleModel, cfg.OracleTimeout)
	raw, err := client.Analyze(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	reporter.StageComplete("%d raw hits from %s", len(raw), client.Model())

	reporter.StartStage(progress.StageClean)
	cleaned := hits.Clean(raw)
	reporter.StageComplete("%d hits retained, %d removed", len(cleaned), len(raw)-len(cleaned))

	return cleaned, nil
}
