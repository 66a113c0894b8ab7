package group

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/deusflow/newsai/internal/article"
)

// DisplayRecord is one cluster folded into a single presentable story.
type DisplayRecord struct {
	ClusterID  int
	URLs       []string
	Headlines  []string
	Sources    []string
	Categories []string
	Published  time.Time // mean of member publication times
	Summary    string    // summary of the first member that has one
}

// Display folds clustered articles into one record per cluster, ordered by
// cluster id. Unclustered articles, including those never grouped, are
// returned separately in input order.
func Display(articles []*article.Record) ([]DisplayRecord, []*article.Record) {
	byCluster := make(map[int][]*article.Record)
	var singles []*article.Record
	for _, a := range articles {
		id := a.Cluster()
		if id == article.Unclustered {
			singles = append(singles, a)
			continue
		}
		byCluster[id] = append(byCluster[id], a)
	}

	ids := make([]int, 0, len(byCluster))
	for id := range byCluster {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	groups := make([]DisplayRecord, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, fold(id, byCluster[id]))
	}
	return groups, singles
}

func fold(id int, members []*article.Record) DisplayRecord {
	d := DisplayRecord{ClusterID: id}
	var sum int64
	for _, m := range members {
		d.URLs = append(d.URLs, m.URL)
		d.Headlines = append(d.Headlines, m.Headline)
		d.Sources = append(d.Sources, m.Source)
		for _, c := range m.Categories {
			d.Categories = appendUnique(d.Categories, c)
		}
		sum += m.Published.Unix()
		// Members are in input order; the first one with a summary speaks
		// for the whole group.
		if d.Summary == "" && m.HasSummary() {
			d.Summary = m.Summary.Text
		}
	}
	d.Published = time.Unix(sum/int64(len(members)), 0).UTC()
	return d
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// Render writes groups and singles as a table, ages relative to now.
func Render(w io.Writer, groups []DisplayRecord, singles []*article.Record, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Cluster", "Published", "Sources", "Headlines", "Categories"})

	for _, g := range groups {
		t.AppendRow(table.Row{
			g.ClusterID,
			humanize.RelTime(g.Published, now, "ago", "from now"),
			strings.Join(g.Sources, ", "),
			strings.Join(g.Headlines, "\n"),
			strings.Join(g.Categories, ", "),
		})
	}
	if len(groups) > 0 && len(singles) > 0 {
		t.AppendSeparator()
	}
	for _, a := range singles {
		t.AppendRow(table.Row{
			"-",
			humanize.RelTime(a.Published, now, "ago", "from now"),
			a.Source,
			a.Headline,
			strings.Join(a.Categories, ", "),
		})
	}
	t.AppendFooter(table.Row{"", "", "", humanize.Comma(int64(len(groups))) + " groups, " + humanize.Comma(int64(len(singles))) + " single", ""})
	t.Render()
}
