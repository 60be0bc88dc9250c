package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/mizan"
	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/index"
	"github.com/poiesic/mizan/search"
	"github.com/poiesic/mizan/storage/badger"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:   "index",
		Usage:  "Build the vector index of one or both corpora",
		Action: runIndex,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "corpus",
				Usage: "Corpus to index (scripture, narrations, all)",
				Value: corpusAll,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Rebuild even when the persisted index is current",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Do not read or write the embedding cache",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of documents embedded per call (overrides config)",
			},
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find the passages most relevant to a query",
		ArgsUsage: "<query>",
		Action:    runSearch,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "corpus",
				Usage: "Corpus to search (scripture, narrations)",
				Value: corpusScripture,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of results",
				Value:   core.DefaultLimit,
			},
			&cli.BoolFlag{
				Name:  "no-rerank",
				Usage: "Rank by embedding similarity only",
			},
			&cli.StringSliceFlag{
				Name:  "source",
				Usage: "Restrict results to these collections",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the response as JSON",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print each search stage to stderr",
			},
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:   "inspect",
		Usage:  "Show persisted index and cache statistics",
		Action: runInspect,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "corpus",
				Usage: "Corpus to inspect (scripture, narrations, all)",
				Value: corpusAll,
			},
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the embedding cache",
		Subcommands: []*cli.Command{
			{
				Name:   "clear",
				Usage:  "Delete cached embeddings of one model",
				Action: runCacheClear,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "model",
						Usage:    "Model name as recorded in the index",
						Required: true,
					},
				},
			},
		},
	}
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt)
}

func runIndex(c *cli.Context) error {
	cfg := appConfig(c)
	if n := c.Int("batch-size"); n > 0 {
		cfg.Indexing.BatchSize = n
	}
	names, err := corpusNames(c.String("corpus"), true)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	provider, err := mizan.NewProvider(cfg.AI())
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}
	defer provider.Close()

	cache, err := openCache(cfg, c.Bool("no-cache"))
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	out := c.App.ErrWriter
	fmt.Fprintf(out, "Model: %s\n", provider.ModelName())
	for _, name := range names {
		engine, err := newEngine(cfg, name, engineParams{provider: provider, cache: cache, progress: out})
		if err != nil {
			return err
		}
		err = buildIndex(ctx, c, engine)
		engine.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func buildIndex(ctx context.Context, c *cli.Context, engine *mizan.Engine) error {
	out := c.App.ErrWriter
	fmt.Fprintf(out, "\nIndexing %s\n", engine.Name())

	if c.Bool("force") {
		if _, err := engine.Rebuild(ctx); err != nil {
			return fmt.Errorf("indexing %s failed: %w", engine.Name(), err)
		}
	} else if err := engine.Init(ctx); err != nil {
		return fmt.Errorf("indexing %s failed: %w", engine.Name(), err)
	}

	report := engine.Report()
	if report == nil {
		fmt.Fprintf(out, "Index is current: %s records\n", humanize.Comma(int64(engine.Index().Len())))
		return nil
	}
	fmt.Fprintf(out, "Indexed %s of %s documents in %s (%s cached, %s skipped, %d failed batches)\n",
		humanize.Comma(int64(report.Indexed)),
		humanize.Comma(int64(report.Documents)),
		report.Elapsed.Round(time.Millisecond),
		humanize.Comma(int64(report.CacheHits)),
		humanize.Comma(int64(report.Skipped)),
		report.FailedBatches,
	)
	if report.PersistErr != nil {
		return fmt.Errorf("index built but not saved: %w", report.PersistErr)
	}
	if report.IndexPath != "" {
		fmt.Fprintf(out, "Saved %s\n", report.IndexPath)
	}
	return nil
}

func runSearch(c *cli.Context) error {
	cfg := appConfig(c)
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}
	names, err := corpusNames(c.String("corpus"), false)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	cache, err := openCache(cfg, false)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	engine, err := newEngine(cfg, names[0], engineParams{cache: cache, progress: c.App.ErrWriter})
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Init(ctx); err != nil {
		return err
	}

	req := core.SearchRequest{
		Text:         query,
		Limit:        c.Int("limit"),
		SourceFilter: c.StringSlice("source"),
	}
	if c.Bool("no-rerank") {
		rerank := false
		req.Rerank = &rerank
	}

	var monitor search.SearchMonitor
	if c.Bool("verbose") {
		monitor = newTextMonitor(c.App.ErrWriter)
	}
	resp, err := engine.SearchWithMonitor(ctx, req, monitor)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResults(c.App.Writer, resp)
	return nil
}

func runInspect(c *cli.Context) error {
	cfg := appConfig(c)
	names, err := corpusNames(c.String("corpus"), true)
	if err != nil {
		return err
	}
	out := c.App.Writer

	var models []string
	for _, name := range names {
		_, path := corpusLoader(cfg, name)
		fmt.Fprintf(out, "%s\n  path: %s\n", name, path)

		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(out, "  status: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  size: %s, modified %s\n", humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))

		idx, err := index.Load(path, index.Stamp{Version: index.FormatVersion})
		if err != nil {
			fmt.Fprintf(out, "  status: unusable, will be rebuilt (%v)\n", err)
			continue
		}
		stamp := idx.Stamp()
		models = append(models, stamp.Model)
		fmt.Fprintf(out, "  model: %s\n  format: v%d\n  records: %s\n  dimension: %d\n",
			stamp.Model, stamp.Version, humanize.Comma(int64(idx.Len())), idx.Dimension())
		printCollections(out, idx.Collections())
	}

	if !cfg.CacheEnabled() {
		fmt.Fprintln(out, "cache: disabled")
		return nil
	}
	if _, err := os.Stat(cfg.CachePath); err != nil {
		fmt.Fprintf(out, "cache: %s (empty)\n", cfg.CachePath)
		return nil
	}
	cache, err := badger.OpenEmbeddingCache(cfg.CachePath)
	if err != nil {
		return fmt.Errorf("open embedding cache: %w", err)
	}
	defer cache.Close()
	fmt.Fprintf(out, "cache: %s\n", cfg.CachePath)
	seen := map[string]bool{}
	for _, model := range models {
		if seen[model] {
			continue
		}
		seen[model] = true
		n, err := cache.CountEmbeddings(c.Context, model)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s: %s embeddings\n", model, humanize.Comma(int64(n)))
	}
	return nil
}

func runCacheClear(c *cli.Context) error {
	cfg := appConfig(c)
	if !cfg.CacheEnabled() {
		return errors.New("embedding cache is disabled")
	}
	cache, err := openCache(cfg, false)
	if err != nil {
		return err
	}
	defer cache.Close()

	n, err := cache.DeleteEmbeddings(c.Context, c.String("model"))
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s embeddings of %s\n", humanize.Comma(int64(n)), c.String("model"))
	return nil
}
