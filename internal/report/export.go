// Package report flattens enriched deals into the CSV deal export.
package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/internal/deals"
	"github.com/sells-group/deal-enricher/internal/model"
	"github.com/sells-group/deal-enricher/pkg/hubspot"
)

// Computed column names.
const (
	ColLeadOwnerName      = "Lead Owner Name"
	ColLeadOwnerEmail     = "Lead Owner Email"
	ColSupportMemberName  = "Support Member Name"
	ColSupportMemberEmail = "Support Member Email"

	stageSuffix  = "_days_in_stage"
	unknownStage = "Unknown Stage"
)

// DefaultExcludedColumns are internal columns dropped from every export.
var DefaultExcludedColumns = []string{
	"hs_object_id",
	"archived",
	"hs_lastmodifieddate",
	model.PropOwner,
	"pipeline",
	model.PropTeamMember,
	"id",
	"createdAt",
	"updatedAt",
	ColLeadOwnerEmail,
	ColSupportMemberEmail,
}

// FundLabels maps fund option values to display labels.
type FundLabels map[string]string

// FundLabelsFrom picks the fund property's options out of the deal
// property definitions.
func FundLabelsFrom(defs []hubspot.PropertyDefinition) FundLabels {
	labels := FundLabels{}
	for _, d := range defs {
		if d.Name != model.PropFund {
			continue
		}
		for _, opt := range d.Options {
			labels[opt.Value] = opt.Label
		}
	}
	return labels
}

// Exporter renders deals as CSV.
type Exporter struct {
	exclude map[string]bool
	now     func() time.Time
}

// NewExporter creates an Exporter. A nil exclude list uses
// DefaultExcludedColumns.
func NewExporter(exclude []string) *Exporter {
	if exclude == nil {
		exclude = DefaultExcludedColumns
	}
	set := make(map[string]bool, len(exclude))
	for _, c := range exclude {
		set[c] = true
	}
	return &Exporter{exclude: set, now: time.Now}
}

// Filename returns the export file name for r.
func Filename(r deals.DateRange) string {
	return "Deal_Export--" + r.String() + ".csv"
}

// Export flattens deals into an in-memory CSV document. The header is the
// union of all row columns in first-seen order, minus excluded columns.
func (e *Exporter) Export(ds []*model.Deal, r deals.DateRange, funds FundLabels) (*bytes.Buffer, string, error) {
	now := e.now()

	var header []string
	seen := map[string]bool{}
	rows := make([]map[string]string, 0, len(ds))
	for _, d := range ds {
		cols, row := e.flatten(d, funds, now)
		for _, c := range cols {
			if !seen[c] && !e.exclude[c] {
				seen[c] = true
				header = append(header, c)
			}
		}
		rows = append(rows, row)
	}

	buf := &bytes.Buffer{}
	if len(header) == 0 {
		return buf, Filename(r), nil
	}
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return nil, "", eris.Wrap(err, "report: write header")
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, c := range header {
			record[i] = row[c]
		}
		if err := w.Write(record); err != nil {
			return nil, "", eris.Wrap(err, "report: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", eris.Wrap(err, "report: flush csv")
	}

	zap.L().Info("report: export built",
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(header)),
		zap.String("range", r.String()),
	)
	return buf, Filename(r), nil
}

// flatten returns a deal's columns in order and its values.
func (e *Exporter) flatten(d *model.Deal, funds FundLabels, now time.Time) ([]string, map[string]string) {
	row := make(map[string]string, len(d.Properties)+8)
	cols := make([]string, 0, len(d.Properties)+8)
	set := func(k, v string) {
		if _, ok := row[k]; !ok {
			cols = append(cols, k)
		}
		row[k] = v
	}

	keys := make([]string, 0, len(d.Properties))
	for k := range d.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set(k, d.Properties[k])
	}

	set("id", d.ID)
	set("createdAt", formatTime(d.CreatedAt))
	set("updatedAt", formatTime(d.UpdatedAt))
	set("archived", strconv.FormatBool(d.Archived))

	if v := row[model.PropFund]; v != "" {
		if label, ok := funds[v]; ok {
			row[model.PropFund] = label
		}
	}

	lead := d.Owner(model.PropOwner)
	set(ColLeadOwnerName, ownerName(lead))
	set(ColLeadOwnerEmail, ownerEmail(lead))
	support := d.Owner(model.PropTeamMember)
	set(ColSupportMemberName, ownerName(support))
	set(ColSupportMemberEmail, ownerEmail(support))

	names, days := StageDurations(d.StageHistory, now)
	for _, name := range names {
		set(name+stageSuffix, strconv.Itoa(days[name]))
	}
	return cols, row
}

// StageDurations computes whole days spent in each stage. History is
// sorted by timestamp; each stage runs until the next transition and the
// last one until now. Repeated stages are summed. Stage names are returned
// in first-entered order.
func StageDurations(history []model.StageTransition, now time.Time) ([]string, map[string]int) {
	if len(history) == 0 {
		return nil, nil
	}
	sorted := make([]model.StageTransition, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var names []string
	days := map[string]int{}
	for i, st := range sorted {
		exit := now
		if i+1 < len(sorted) {
			exit = sorted[i+1].Timestamp
		}
		name := st.StageName
		if name == "" {
			name = unknownStage
		}
		if _, ok := days[name]; !ok {
			names = append(names, name)
		}
		days[name] += wholeDays(exit.Sub(st.Timestamp))
	}
	return names, days
}

func wholeDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

func ownerName(o *model.Owner) string {
	if o == nil || o.IsEmpty() {
		return ""
	}
	return o.FullName()
}

func ownerEmail(o *model.Owner) string {
	if o == nil {
		return ""
	}
	return o.Email
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// SetClock overrides the time used for the current stage's duration.
func (e *Exporter) SetClock(now func() time.Time) {
	e.now = now
}
