package report

import (
	"fmt"
	"io"
	"strings"

	"vidfinder/internal/mover"
	"vidfinder/internal/preflight"
)

// WriteDoctor renders preflight results.
func WriteDoctor(w io.Writer, format Format, results []preflight.Result) error {
	if done, err := encode(w, format, results); done {
		return err
	}
	rows := make([][]string, 0, len(results))
	failed := 0
	for _, r := range results {
		status := "ok"
		if !r.Passed {
			status = "FAIL"
			failed++
		}
		rows = append(rows, []string{r.Name, status, r.Detail})
	}
	var b strings.Builder
	b.WriteString(renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
	b.WriteString("\n")
	if failed > 0 {
		fmt.Fprintf(&b, "%s %s failed.\n", count(failed), plural(failed, "check", "checks"))
	} else {
		b.WriteString("All checks passed.\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WritePlan describes pending moves for the confirmation prompt.
func WritePlan(w io.Writer, plan mover.Plan) error {
	var b strings.Builder
	fmt.Fprintf(&b, "About to move %s %s (%s):\n",
		count(len(plan.Moves)), plural(len(plan.Moves), "file", "files"), size(plan.Bytes()))
	for _, k := range []mover.Kind{mover.KindDuplicate, mover.KindWatched, mover.KindSkipped} {
		if n := plan.Count(k); n > 0 {
			var dir string
			for _, m := range plan.Moves {
				if m.Kind == k {
					dir = m.Dir
					break
				}
			}
			fmt.Fprintf(&b, "  %s %s -> %s\n", count(n), string(k), relPath(plan.Root, dir))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteMoves renders the mover summary.
func WriteMoves(w io.Writer, format Format, root string, summary mover.Summary) error {
	if done, err := encode(w, format, summary); done {
		return err
	}
	var b strings.Builder
	if len(summary.Moved) > 0 {
		rows := make([][]string, 0, len(summary.Moved))
		for _, m := range summary.Moved {
			rows = append(rows, []string{string(m.Kind), relPath(root, m.Source), relPath(root, m.Dest), size(m.Size)})
		}
		b.WriteString(renderTable(
			[]string{"Kind", "From", "To", "Size"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
		b.WriteString("\n")
	}
	for _, f := range summary.Failed {
		fmt.Fprintf(&b, "failed: %s: %s\n", relPath(root, f.Source), f.Error)
	}
	fmt.Fprintf(&b, "Moved %s %s (%s), %s left in place, %s failed.\n",
		count(len(summary.Moved)), plural(len(summary.Moved), "file", "files"), size(summary.Bytes),
		count(len(summary.Kept)), count(len(summary.Failed)))
	_, err := io.WriteString(w, b.String())
	return err
}
