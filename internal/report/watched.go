package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"vidfinder/internal/engine"
	"vidfinder/internal/hashcache"
)

// WriteBuild renders a watched database build.
func WriteBuild(w io.Writer, format Format, res *engine.BuildResult) error {
	if done, err := encode(w, format, res); done {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", res.RunID)
	writeParams(&b, res.Source, res.Params)
	fmt.Fprintf(&b, "Database: %s\n\n", res.WatchedDB)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped (%s):\n", count(len(res.Skipped)))
		b.WriteString(skippedTable(res.Source, res.Skipped))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Fingerprinted %s videos in %s: %s from cache, %s computed, %s skipped.\n",
		count(res.Stats.Discovered), res.Stats.Elapsed.Round(time.Millisecond),
		count(res.Stats.Cached), count(res.Stats.Computed), count(res.Stats.Failed))
	fmt.Fprintf(&b, "Records: %s added, %s updated, %s unchanged; %s total.\n",
		count(res.Upsert.Inserted), count(res.Upsert.Updated), count(res.Upsert.Unchanged), count(res.Records))
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteInspection renders a watched database summary and optional listing.
func WriteInspection(w io.Writer, format Format, in *engine.Inspection) error {
	if done, err := encode(w, format, in); done {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Database:  %s\n", in.Path)
	fmt.Fprintf(&b, "Records:   %s\n", count(in.Count))
	fmt.Fprintf(&b, "Frames:    %d\n", in.Params.Frames)
	fmt.Fprintf(&b, "Hash size: %d (%s bits per fingerprint)\n", in.Params.HashSize, count(in.Params.TotalBits()))
	if len(in.Records) > 0 {
		rows := make([][]string, 0, len(in.Records))
		for _, r := range in.Records {
			frames := fmt.Sprintf("%d", r.Frames)
			if r.Frames < in.Params.Frames {
				frames += " short"
			}
			rows = append(rows, []string{
				r.Path,
				size(r.Size),
				clock(r.Duration),
				frames,
				r.UpdatedAt.Local().Format(time.DateTime),
			})
		}
		b.WriteString("\n")
		b.WriteString(renderTable(
			[]string{"Path", "Size", "Duration", "Frames", "Updated"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteCacheInfo renders cache statistics.
func WriteCacheInfo(w io.Writer, format Format, info hashcache.Info) error {
	if done, err := encode(w, format, info); done {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cache:     %s\n", info.Path)
	if !info.Exists {
		b.WriteString("Status:    not created yet\n")
	} else {
		fmt.Fprintf(&b, "Entries:   %s\n", count(info.Entries))
		fmt.Fprintf(&b, "Frames:    %d\n", info.Frames)
		fmt.Fprintf(&b, "Hash size: %d\n", info.HashSize)
		fmt.Fprintf(&b, "File size: %s\n", size(info.Bytes))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WritePrune renders the result of a cache prune.
func WritePrune(w io.Writer, format Format, path string, stats hashcache.Stats) error {
	if done, err := encode(w, format, stats); done {
		return err
	}
	_, err := fmt.Fprintf(w, "Pruned %s %s from %s; %s remain.\n",
		count(stats.Pruned), plural(stats.Pruned, "entry", "entries"), path, count(stats.Entries))
	return err
}
