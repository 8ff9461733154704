package cargoedit

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/cassaundra/cargo-edit/selection"
)

// Report is the per-dependency trace of an upgrade: every considered entry
// appears exactly once, whatever was decided about it.
type Report struct {
	Outcomes []selection.Outcome
}

// Changed returns the outcomes that rewrite a manifest.
func (r *Report) Changed() []selection.Outcome {
	return r.filter(func(o selection.Outcome) bool { return o.Changed() })
}

// Unresolvable returns the outcomes no version could be selected for.
func (r *Report) Unresolvable() []selection.Outcome {
	return r.filter(func(o selection.Outcome) bool {
		return o.Decision == selection.Unresolvable
	})
}

func (r *Report) filter(keep func(selection.Outcome) bool) []selection.Outcome {
	var out []selection.Outcome
	for _, o := range r.Outcomes {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// String renders the report as an aligned table, one dependency per row.
func (r *Report) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 2, 0, 2, ' ', 0)
	fmt.Fprintln(w, "name\told req\tlocked\tlatest\tnew req\tnote")
	fmt.Fprintln(w, "====\t=======\t======\t======\t=======\t====")
	for _, o := range r.Outcomes {
		locked, latest := "-", "-"
		if o.Locked != nil {
			locked = o.Locked.String()
		}
		if o.Latest != nil {
			latest = o.Latest.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Key, o.OldReq, locked, latest, o.NewReq, o.Note)
	}
	_ = w.Flush()
	return sb.String()
}
