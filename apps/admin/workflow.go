package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/approvals/core/workflow"
)

func (cli *commandLine) listPending(variant workflow.Variant, statuses []workflow.Status) error {
	if !variant.IsValid() {
		return errors.Errorf("unknown variant %q", variant)
	}
	recs, err := cli.wfSvc.Query(context.Background(), workflow.QueryFilter{Variant: variant, Statuses: statuses})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintf(cli.out, "no %s records found\n", variant.Name())
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tOWNER\tSUBMITTED")
	for _, rec := range recs {
		submitted := "-"
		if !rec.SubmittedAt.IsZero() {
			submitted = rec.SubmittedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rec.ID, rec.Title(), rec.StatusLabel(), rec.OwnerID, submitted)
	}
	return w.Flush()
}

func (cli *commandLine) printStats(variant workflow.Variant) error {
	if !variant.IsValid() {
		return errors.Errorf("unknown variant %q", variant)
	}
	stats, err := cli.wfSvc.Stats(context.Background(), variant)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	for _, s := range workflow.Statuses {
		fmt.Fprintf(w, "%s\t%d\n", s.Label(variant), stats.Counts[s])
	}
	fmt.Fprintf(w, "Total\t%d\n", stats.Total)
	return w.Flush()
}
