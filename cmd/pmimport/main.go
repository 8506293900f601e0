package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ieee0824/translate-go/phrasemem"
)

var (
	dbPath    string
	batchSize int
	domain    uint32

	rootCmd = &cobra.Command{
		Use:   "pmimport [phrase-table-files...]",
		Short: "Import text phrase tables into a SQLite phrase memory",
		Long: `Reads phrase tables in the format

  source ||| target ||| alignment ||| p1 p2 p3 p4 [||| domain]

and appends the records to the phrase memory database.
If no input files are given, reads from stdin.`,
		RunE: run,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&dbPath, "db", "d", "pm.db", "phrase memory database")
	rootCmd.Flags().IntVar(&batchSize, "batch", 10000, "records per transaction")
	rootCmd.Flags().Uint32Var(&domain, "domain", 0, "domain id for lines without one")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	store, err := phrasemem.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if len(args) == 0 {
		return importFrom(ctx, store, "stdin", os.Stdin)
	}
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		err = importFrom(ctx, store, path, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func importFrom(ctx context.Context, store *phrasemem.Store, name string, r io.Reader) error {
	batch := make([]phrasemem.Entry, 0, batchSize)
	total := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.AddEntries(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := phrasemem.ReadPhraseTable(r, func(e phrasemem.Entry) error {
		if e.Domain == 0 {
			e.Domain = domain
		}
		batch = append(batch, e)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Info("imported", "input", name, "records", total)
	return nil
}
