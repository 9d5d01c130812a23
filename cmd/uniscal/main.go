package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"uniscal/internal/config"
	"uniscal/internal/convert"
	"uniscal/internal/ics"
	appLog "uniscal/internal/log"
	"uniscal/internal/model"
	"uniscal/internal/timetable"
	"uniscal/internal/web"
)

// flagConfig holds CLI flag values; non-empty values override the config
// file.
type flagConfig struct {
	configPath string
	input      string
	output     string
	listen     string
	serve      bool
	preview    int
	stdout     bool
}

func main() {
	appLog.Info("uniscal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.input != "" {
		conf.Input = flags.input
	}
	if flags.output != "" {
		conf.Output = flags.output
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"input", conf.Input,
		"output", conf.Output,
		"semester_end", conf.SemesterEnd,
		"refresh", conf.RefreshCron,
		"serve", flags.serve,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.serve {
		if err := web.StartServer(ctx, conf); err != nil {
			appLog.Error("server failed", err)
			os.Exit(1)
		}
		appLog.Info("uniscal exiting")
		return
	}

	if err := runConvert(ctx, conf, flags); err != nil {
		appLog.Error("conversion failed", err)
		os.Exit(1)
	}
	appLog.Info("uniscal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/uniscal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.input, "input", "", "Timetable export path or URL (overrides config if set)")
	flag.StringVar(&cfg.output, "output", "", "Calendar file to write (overrides config if set)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.serve, "serve", false, "Serve the calendar over HTTP instead of writing a file")
	flag.IntVar(&cfg.preview, "preview", 0, "Print occurrences for the next N days instead of writing")
	flag.BoolVar(&cfg.stdout, "stdout", false, "Write the calendar to stdout instead of a file")

	flag.Parse()

	return cfg
}

// runConvert performs a one-shot conversion: load, map, render, verify,
// write. On any failure no output file is touched.
func runConvert(ctx context.Context, conf *config.Config, flags flagConfig) error {
	loc := conf.Location()

	data, err := timetable.LoadSource(ctx, conf.Input, conf.CacheDir)
	if err != nil {
		return err
	}

	semesterEnd, err := conf.SemesterEndTime(loc)
	if err != nil {
		return err
	}

	res, err := convert.BuildCalendar(data,
		convert.Options{
			SemesterEnd: semesterEnd,
			Location:    loc,
		},
		ics.BuilderOptions{
			ProdID:    conf.ProdID,
			UIDDomain: conf.UIDDomain,
		},
	)
	if err != nil {
		return err
	}

	for _, skip := range res.Report.Skips {
		appLog.Warn("lesson skipped",
			"course", skip.Course,
			"start", skip.Start,
			"end", skip.End,
			"reason", skip.Reason,
		)
	}

	if flags.preview > 0 {
		return printPreview(res.Events, loc, flags.preview)
	}

	if flags.stdout {
		_, err := os.Stdout.Write(res.Document)
		return err
	}

	if err := writeFileAtomic(conf.Output, res.Document, 0o644); err != nil {
		return err
	}

	appLog.Info("calendar written",
		"output", conf.Output,
		"bytes", len(res.Document),
		"events", len(res.Events),
		"periodic", res.Report.Periodic,
		"block", res.Report.Block,
		"skipped", res.Report.Skipped,
	)
	return nil
}

// printPreview lists upcoming occurrences on stdout, one per line.
func printPreview(events []model.CalendarEvent, loc *time.Location, days int) error {
	now := time.Now().In(loc)
	res, err := ics.Expand(events, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      now,
		RangeEnd:        now.AddDate(0, 0, days),
	})
	if err != nil {
		return err
	}

	if len(res.Occurrences) == 0 {
		fmt.Println("no occurrences in range")
		return nil
	}

	for _, occ := range res.Occurrences {
		fmt.Printf("%s  %s-%s  %-8s  %s (%s)\n",
			occ.Start.Format("Mon 2006-01-02"),
			occ.Start.Format("15:04"),
			occ.End.Format("15:04"),
			occ.Kind,
			occ.Summary,
			occ.Location,
		)
	}
	return nil
}

// writeFileAtomic writes data via a temp file + rename in the target
// directory, so a failed run never leaves a truncated calendar behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".uniscal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
