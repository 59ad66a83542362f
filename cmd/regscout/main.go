package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/complyhq/regscout/internal/agent"
	"github.com/complyhq/regscout/internal/app"
	"github.com/complyhq/regscout/internal/config"
	"github.com/complyhq/regscout/internal/export"
	"github.com/complyhq/regscout/internal/team"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.FromEnv()

	var (
		query        string
		jurisdiction string
		session      string
		skipCache    bool
		exportMD     string
		exportJSON   string
		exportPDF    string
		pdfFont      string

		verifyRun    bool
		verifyReport bool

		baselineStats bool
		cacheClear    bool
		cacheStats    bool
		historyList   int

		verbose bool
	)

	flag.StringVar(&query, "q", "", "Regulatory question to research")
	flag.StringVar(&jurisdiction, "region", "", "Jurisdiction hint (taiwan, japan, eu, usa)")
	flag.StringVar(&session, "session", "", "Conversation session id for follow-up questions")
	flag.BoolVar(&skipCache, "cache.skip", false, "Bypass the answer cache and run the pipeline afresh")
	flag.StringVar(&exportMD, "export.md", "", "Write the answer as Markdown to this path")
	flag.StringVar(&exportJSON, "export.json", "", "Write the answer as JSON to this path")
	flag.StringVar(&exportPDF, "export.pdf", "", "Write the answer as PDF to this path")
	flag.StringVar(&pdfFont, "export.pdfFont", os.Getenv("REGSCOUT_PDF_FONT"), "UTF-8 TTF font file for PDF export (needed for CJK text)")
	flag.BoolVar(&verifyRun, "verify.run", false, "Run scheduled baseline verification and exit")
	flag.BoolVar(&verifyReport, "verify.report", false, "Print the baseline health report and exit")
	flag.BoolVar(&baselineStats, "baseline.stats", false, "Print baseline statistics and exit")
	flag.BoolVar(&cacheClear, "cache.clear", false, "Clear the answer cache and exit")
	flag.BoolVar(&cacheStats, "cache.stats", false, "Print answer cache statistics and exit")
	flag.IntVar(&historyList, "history.list", 0, "Print the most recent N history entries and exit")
	flag.StringVar(&cfg.DataDir, "data.dir", cfg.DataDir, "Directory for cache, history and the baseline database")
	flag.StringVar(&cfg.PromptsDir, "prompts.dir", cfg.PromptsDir, "Directory with planner.md, researcher.md, validator.md")
	flag.StringVar(&cfg.RegionsPath, "regions.file", cfg.RegionsPath, "Region profiles YAML file")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	cfg.Verbose = verbose

	if err := run(cfg, options{
		query:         query,
		jurisdiction:  jurisdiction,
		session:       session,
		skipCache:     skipCache,
		exportMD:      exportMD,
		exportJSON:    exportJSON,
		exportPDF:     exportPDF,
		pdfFont:       pdfFont,
		verifyRun:     verifyRun,
		verifyReport:  verifyReport,
		baselineStats: baselineStats,
		cacheClear:    cacheClear,
		cacheStats:    cacheStats,
		historyList:   historyList,
	}); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

type options struct {
	query        string
	jurisdiction string
	session      string
	skipCache    bool
	exportMD     string
	exportJSON   string
	exportPDF    string
	pdfFont      string

	verifyRun    bool
	verifyReport bool

	baselineStats bool
	cacheClear    bool
	cacheStats    bool
	historyList   int
}

func run(cfg config.Config, opts options) error {
	ctx := context.Background()

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	switch {
	case opts.cacheClear:
		n, err := a.Cache.ClearAll()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d cache entries\n", n)
		return nil

	case opts.cacheStats:
		s, err := a.Cache.Stat()
		if err != nil {
			return err
		}
		fmt.Printf("entries: %d (expired: %d), %d bytes\n", s.Entries, s.Expired, s.Bytes)
		return nil

	case opts.historyList > 0:
		entries, err := a.History.List(opts.historyList)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  [%s] %s (%d 條法規)\n",
				e.ID, e.Timestamp.Format("2006-01-02 15:04"), e.Status, e.Query, e.Regulations)
		}
		return nil

	case opts.baselineStats:
		s, err := a.Baseline.Statistics(ctx)
		if err != nil {
			return err
		}
		raw, _ := json.MarshalIndent(s, "", "  ")
		fmt.Println(string(raw))
		return nil

	case opts.verifyRun:
		summary, err := a.Verifier.RunScheduled(ctx)
		if err != nil {
			return err
		}
		raw, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(raw))
		return nil

	case opts.verifyReport:
		report, err := a.Verifier.GenerateReport(ctx)
		if err != nil {
			return err
		}
		fmt.Println(report)
		return nil

	case opts.query != "":
		return answer(ctx, a, opts)
	}

	flag.Usage()
	return fmt.Errorf("nothing to do: pass -q or one of the maintenance flags")
}

func answer(ctx context.Context, a *app.App, opts options) error {
	res, err := a.Team.ProcessQuery(ctx, team.Request{
		Query:        opts.query,
		Jurisdiction: opts.jurisdiction,
		SessionID:    opts.session,
		SkipCache:    opts.skipCache,
	}, func(e agent.Event) {
		log.Info().Str("stage", e.Stage).Msg(e.Message)
	})
	if err != nil {
		return err
	}

	fmt.Println(export.Markdown(res))

	if opts.exportMD != "" {
		if err := export.WriteMarkdown(res, opts.exportMD); err != nil {
			return fmt.Errorf("export markdown: %w", err)
		}
	}
	if opts.exportJSON != "" {
		if err := export.WriteJSON(res, opts.exportJSON); err != nil {
			return fmt.Errorf("export json: %w", err)
		}
	}
	if opts.exportPDF != "" {
		if err := export.WritePDF(res, opts.exportPDF, export.PDFOptions{FontPath: opts.pdfFont}); err != nil {
			return fmt.Errorf("export pdf: %w", err)
		}
	}
	return nil
}
