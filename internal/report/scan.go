package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"vidfinder/internal/engine"
	"vidfinder/internal/pool"
	"vidfinder/internal/watched"
)

// WriteScan renders a similarity scan.
func WriteScan(w io.Writer, format Format, res *engine.FindResult) error {
	if done, err := encode(w, format, res); done {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", res.RunID)
	writeParams(&b, res.Root, res.Params)
	b.WriteString("\n")

	if len(res.Groups) == 0 {
		b.WriteString("No similar videos found.\n")
	}
	for i, g := range res.Groups {
		fmt.Fprintf(&b, "Group %d: %s %s, similarity avg %s (min %s, max %s)\n",
			i+1, count(len(g.Members)), plural(len(g.Members), "video", "videos"),
			percent(g.AvgSimilarity), percent(g.MinSimilarity), percent(g.MaxSimilarity))
		rows := make([][]string, 0, len(g.Members))
		for _, m := range g.Members {
			marker := ""
			if m.Path == g.Representative.Path {
				marker = "keep"
			}
			rows = append(rows, []string{marker, relPath(res.Root, m.Path), size(m.Size), clock(m.Duration)})
		}
		b.WriteString(renderTable(
			[]string{"", "Path", "Size", "Duration"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
		))
		b.WriteString("\n\n")
	}

	if len(res.WatchedMatches) > 0 {
		fmt.Fprintf(&b, "Already watched (%s):\n", count(len(res.WatchedMatches)))
		b.WriteString(watchedTable(res.Root, res.WatchedMatches))
		b.WriteString("\n\n")
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped (%s):\n", count(len(res.Skipped)))
		b.WriteString(skippedTable(res.Root, res.Skipped))
		b.WriteString("\n\n")
	}

	b.WriteString(scanSummary(res))
	_, err := io.WriteString(w, b.String())
	return err
}

func writeParams(b *strings.Builder, root string, p engine.Params) {
	fmt.Fprintf(b, "Directory: %s\n", root)
	fmt.Fprintf(b, "Threshold: %s, %d frames, hash %dx%d (max distance %s of %s bits)\n",
		percent(p.Threshold), p.Frames, p.HashSize, p.HashSize, count(p.MaxDist), count(p.TotalBits))
}

func watchedTable(root string, matches []watched.Match) string {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{relPath(root, m.File.Path), m.Watched, percent(m.Similarity)})
	}
	return renderTable([]string{"Path", "Watched", "Similarity"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
}

func skippedTable(root string, skipped []pool.Failure) string {
	rows := make([][]string, 0, len(skipped))
	for _, s := range skipped {
		rows = append(rows, []string{relPath(root, s.File.Path), reasonLabel(s.Reason), s.Detail})
	}
	return renderTable([]string{"Path", "Reason", "Detail"}, rows, nil)
}

func scanSummary(res *engine.FindResult) string {
	s := res.Stats
	duplicates := 0
	for _, g := range res.Groups {
		duplicates += len(g.Members) - 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Scanned %s videos in %s: %s from cache, %s computed, %s skipped.\n",
		count(s.Discovered), s.Elapsed.Round(time.Millisecond), count(s.Cached), count(s.Computed), count(s.Failed))
	fmt.Fprintf(&b, "%s %s with %s %s, %s unique.\n",
		count(len(res.Groups)), plural(len(res.Groups), "group", "groups"),
		count(duplicates), plural(duplicates, "duplicate", "duplicates"), count(len(res.Unique)))
	if res.WatchedDB != "" {
		fmt.Fprintf(&b, "Watched database %s: %s records, %s matched.\n",
			res.WatchedDB, count(res.WatchedRecords), count(len(res.WatchedMatches)))
	}
	if u := res.WatchedUpdate; u != nil {
		fmt.Fprintf(&b, "Watched database updated: %s added, %s updated, %s unchanged.\n",
			count(u.Inserted), count(u.Updated), count(u.Unchanged))
	}
	return b.String()
}

// clock formats a duration as H:MM:SS or M:SS.
func clock(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, sec := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
