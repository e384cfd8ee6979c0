package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/kode4food/buildprops/pkg/api"
)

var (
	title   = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed, color.Bold)
	faint   = color.New(color.Faint)
)

func printError(w io.Writer, err error) {
	_, _ = failure.Fprintf(w, "Error: %s\n", err)
}

func printProperties(w io.Writer, props api.Properties) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tKIND\tVALUE")
	for _, p := range props {
		pv := api.EncodeValue(p.Value)
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Key, pv.Kind, pv.Text)
	}
	return tw.Flush()
}

func printTable(w io.Writer, t api.Table) error {
	_, _ = title.Fprintln(w, t.Title)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := append([]string{""}, t.Columns...)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range t.Rows {
		cells := append([]string{r.Title}, r.Cells...)
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func printWait(w io.Writer, st *api.WaitStatus) {
	switch st.State {
	case api.WaitSucceeded:
		_, _ = success.Fprintf(w, "Wait %s succeeded\n", st.ID)
	case api.WaitFailed:
		_, _ = failure.Fprintf(w, "Wait %s failed: %s\n", st.ID, st.Error)
	default:
		_, _ = faint.Fprintf(w, "Wait %s pending on %s\n",
			st.ID, strings.Join(st.Keys, ", "))
	}
}

func printChange(w io.Writer, ev *api.ChangeEvent) {
	old := "-"
	if ev.Old != nil {
		old = ev.Old.Text
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s -> %s (%s)\n",
		ev.RunID, ev.Key, old, ev.New.Text, ev.New.Kind)
}
