package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/0xPuncker/andon-notifier/internal/config"
	"github.com/0xPuncker/andon-notifier/internal/store"
	"github.com/0xPuncker/andon-notifier/pkg/calendar"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to config file")
	jobName := flag.String("job", "", "job to inspect or reset")
	reset := flag.Bool("reset", false, "return the job to pending at its next fire time")
	flag.Parse()

	if err := run(*configPath, *jobName, *reset); err != nil {
		fmt.Fprintf(os.Stderr, "jobctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, jobName string, reset bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, 1)
	if err != nil {
		return err
	}
	defer db.Close()

	jobStore := store.New(db)

	if reset {
		if jobName == "" {
			return errors.New("-reset requires -job")
		}
		nextRun, err := nextFireTime(cfg, jobName, time.Now())
		if err != nil {
			return err
		}
		if err := jobStore.Reset(ctx, jobName, nextRun, time.Now()); err != nil {
			return err
		}
		fmt.Printf("Job %s reset, next run %s\n", jobName, nextRun.Format(time.RFC3339))
	}

	var records []store.JobRecord
	if jobName != "" {
		rec, err := jobStore.Get(ctx, jobName)
		if err != nil {
			return err
		}
		records = append(records, *rec)
	} else {
		if records, err = jobStore.List(ctx); err != nil {
			return err
		}
	}

	printRecords(records)
	return nil
}

func nextFireTime(cfg *config.Config, jobName string, now time.Time) (time.Time, error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return time.Time{}, err
	}
	for _, job := range cfg.Jobs.Predefined {
		if job.Name == jobName {
			return calendar.NextDailyRun(now, job.FireHour, loc)
		}
	}
	return now, nil
}

func printRecords(records []store.JobRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "JOB\tSTATUS\tLAST RUN\tNEXT RUN\tRUN ID\tLAST ERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.JobName,
			rec.Status,
			formatTime(rec.LastRun),
			rec.NextRun.Local().Format(time.RFC3339),
			orDash(rec.LockedBy),
			orDash(rec.LastError),
		)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
