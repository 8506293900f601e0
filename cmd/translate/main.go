package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	translate "github.com/ieee0824/translate-go"
	"github.com/ieee0824/translate-go/config"
	"github.com/ieee0824/translate-go/internal/logger"
	"github.com/ieee0824/translate-go/language"
)

var (
	configPath  string
	workers     int
	domains     map[string]string
	verbose     bool
	metricsAddr string

	rootCmd = &cobra.Command{
		Use:   "translate",
		Short: "Translate tokenized sentences read from stdin",
		Long: `Reads one whitespace-tokenized sentence per line from stdin and
writes one translation per line to stdout. Models and feature weights
come from the TOML configuration given with --config.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		RunE: runTranslate,
	}

	initCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "translate.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			log.Info("wrote configuration", "path", path)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "translate.toml", "configuration file")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "sentences translated concurrently (default: from config)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.Flags().StringToStringVar(&domains, "context", nil, "domain weights, e.g. --context 7=0.8,12=0.2")
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level := log.DebugLevel
	if !verbose {
		if level, err = log.ParseLevel(cfg.Log.Level); err != nil {
			return err
		}
		log.SetLevel(level)
	}
	formatter, err := cfg.Log.Formatter()
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}

	ctx, err := parseDomains(domains)
	if err != nil {
		return err
	}

	opts := []translate.Option{
		translate.WithLogger(logger.NewWithConfig(os.Stderr, "translate", level, cfg.Log.Timestamps, formatter)),
	}
	if workers > 0 {
		opts = append(opts, translate.WithWorkers(workers))
	}
	tr, err := translate.New(cmd.Context(), cfg, opts...)
	if err != nil {
		return err
	}
	defer tr.Close()

	var reqs []translate.Request
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		reqs = append(reqs, translate.Request{Text: scanner.Text(), Context: ctx})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	results, err := tr.TranslateAll(cmd.Context(), reqs)
	if err != nil {
		return err
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for _, res := range results {
		fmt.Fprintln(out, res.Text)
	}
	log.Debug("done", "sentences", len(results))
	return nil
}

func parseDomains(raw map[string]string) (language.Context, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	weights := make(map[string]float64, len(raw))
	for k, v := range raw {
		w, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("--context %s: %w", k, err)
		}
		weights[strings.TrimSpace(k)] = w
	}
	return language.ParseContext(weights)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", "err", err)
	}
}
