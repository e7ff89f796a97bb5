package shell

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"nv/go-nv/internal/platform/metrics"
	"nv/go-nv/pkg/models"

	"github.com/fatih/color"
)

const timeLayout = "02/01/2006 15:04:05"

var dirColor = color.New(color.FgBlue, color.Bold)

func localTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

func renderListing(w io.Writer, entries []models.NodeMetadata) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "name\tsize\tcreated\tmodified\tver")
	for _, e := range entries {
		name := e.Name
		if e.IsDir() {
			name = dirColor.Sprint(name + "/")
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\n", name, e.Size, localTime(e.Created), localTime(e.Modified), e.Version)
	}
	return tw.Flush()
}

func renderInfo(w io.Writer, info models.RepoInfo) {
	fmt.Fprintf(w, "Format version: %d\n", info.FormatVersion)
	fmt.Fprintf(w, "Repository ID: %s\n", info.VolumeID)
	fmt.Fprintf(w, "Fingerprint: %s\n", info.Fingerprint)
	fmt.Fprintf(w, "Cipher: %s\n", info.Cipher)
	fmt.Fprintf(w, "Read only: %t\n", info.ReadOnly)
	fmt.Fprintf(w, "Compression: %t\n", info.Compressed)
	fmt.Fprintf(w, "Created: %s\n", localTime(info.CreatedAt))
}

func renderMetrics(w io.Writer, samples []metrics.Sample) {
	for _, s := range samples {
		labels := make([]string, 0, len(s.Labels))
		for k, v := range s.Labels {
			labels = append(labels, k+"="+v)
		}
		sort.Strings(labels)
		name := s.Name
		if len(labels) > 0 {
			name += "{" + strings.Join(labels, ",") + "}"
		}
		fmt.Fprintf(w, "%s %g\n", name, s.Value)
	}
}

func renderHelp(w io.Writer, commands []command) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "%s\t%s\n", c.usage, c.help)
	}
	fmt.Fprintln(tw, "close, exit\tClose the repository and quit.")
	_ = tw.Flush()
}
