package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ieee0824/translate-go/language"
)

var (
	order  int
	output string

	rootCmd = &cobra.Command{
		Use:   "lmbuild [input-files...]",
		Short: "Build an ARPA n-gram language model from tokenized text",
		Long: `Builds a Witten-Bell smoothed ARPA n-gram model.
Input: one sentence per line, words separated by spaces.
If no input files are given, reads from stdin.`,
		RunE: run,
	}
)

func init() {
	rootCmd.Flags().IntVarP(&order, "order", "n", 3, "n-gram order (2=bigram, 3=trigram)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	b := language.NewBuilder(order)

	var sentCount int
	if len(args) == 0 {
		sentCount = readLines(b, os.Stdin)
	} else {
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				log.Warn("skipping input", "path", path, "err", err)
				continue
			}
			sentCount += readLines(b, f)
			f.Close()
		}
	}

	w := io.Writer(os.Stdout)
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if err := b.WriteARPA(w); err != nil {
		return fmt.Errorf("write ARPA: %w", err)
	}

	log.Info("built model", "order", order, "sentences", sentCount)
	return nil
}

func readLines(b *language.Builder, r io.Reader) int {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		words := strings.Fields(scanner.Text())
		if len(words) > 0 {
			b.AddSentence(words)
			count++
		}
	}
	return count
}
