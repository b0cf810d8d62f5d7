package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/internal/model"
)

// Match attaches each succeeded result's parsed JSON to its deal and
// returns how many results matched. Results are correlated by custom ID
// through ids when present, otherwise by the "dealname" field of the
// parsed body. Unmatched results are logged.
func Match(deals []*model.Deal, results []Result, ids map[string]string) int {
	byID := make(map[string]*model.Deal, len(deals))
	byName := make(map[string][]*model.Deal, len(deals))
	for _, d := range deals {
		byID[d.ID] = d
		byName[d.Name()] = append(byName[d.Name()], d)
	}

	matched := 0
	for _, r := range results {
		if !r.Succeeded() {
			zap.L().Warn("classify: request did not succeed",
				zap.String("custom_id", r.CustomID),
				zap.String("type", r.Type),
				zap.String("error", r.Error),
			)
			continue
		}

		parsed, err := ParseBody(r.Text)
		if err != nil {
			zap.L().Warn("classify: unparseable result body",
				zap.String("custom_id", r.CustomID),
				zap.Error(err),
			)
			continue
		}

		var targets []*model.Deal
		if d, ok := byID[ids[r.CustomID]]; ok {
			targets = []*model.Deal{d}
		} else {
			name, _ := parsed[model.PropDealName].(string)
			targets = byName[name]
		}
		if len(targets) == 0 {
			name, _ := parsed[model.PropDealName].(string)
			zap.L().Warn("classify: result matched no deal",
				zap.Error(&NotFoundError{CustomID: r.CustomID, DealName: name}),
			)
			continue
		}

		for _, d := range targets {
			d.Parsed = parsed
		}
		matched++
	}
	return matched
}

// ParseBody decodes a result body as a JSON object, tolerating a Markdown
// code fence around it.
func ParseBody(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, eris.Wrap(err, "classify: parse result body")
	}
	return m, nil
}

// Updater writes deal properties.
type Updater interface {
	UpdateDeal(ctx context.Context, dealID string, props map[string]string) error
}

// WritebackStats summarizes a Writeback call.
type WritebackStats struct {
	Updated int
	Skipped int
	Failed  int
}

// Writeback stores each deal's parsed recommendation in the keywords
// property. Deals without a recommendation are skipped; update failures
// are logged per deal.
func Writeback(ctx context.Context, client Updater, deals []*model.Deal) WritebackStats {
	var stats WritebackStats
	for _, d := range deals {
		rec, ok := d.Recommendation()
		value := FormatRecommendation(rec)
		if !ok || value == "" {
			stats.Skipped++
			continue
		}
		if ctx.Err() != nil {
			stats.Failed++
			continue
		}

		if err := client.UpdateDeal(ctx, d.ID, map[string]string{model.PropKeywords: value}); err != nil {
			stats.Failed++
			zap.L().Warn("classify: writeback failed",
				zap.String("deal_id", d.ID),
				zap.String("deal_name", d.Name()),
				zap.Error(err),
			)
			continue
		}
		stats.Updated++
	}

	zap.L().Info("classify: writeback complete",
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats
}

// FormatRecommendation renders a recommendation as the keywords value:
// strings as-is, lists joined with ", ", anything else as JSON.
func FormatRecommendation(rec any) string {
	switch v := rec.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
