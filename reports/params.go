package reports

import (
	"strconv"
	"strings"
	"time"

	gwerrors "github.com/jrsteele09/dashboard-gateway/internal/errors"
	"github.com/spf13/cast"
)

const (
	dayBoundaryHour = 6
	sqlDateLayout   = "2006-01-02 15:04:05"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Params are the caller values substituted into a report template. Build
// them with NewParams so that every value is validated before it reaches SQL.
type Params struct {
	Date1    time.Time
	Date2    time.Time
	Branches []int
}

// NewParams parses both dates in loc and moves them to the 06:00 business
// day boundary. branches may be a list of numbers or numeric strings, or a
// comma separated string.
func NewParams(date1, date2 string, branches any, loc *time.Location) (Params, error) {
	if loc == nil {
		loc = time.Local
	}
	d1, err := parseDate(date1, loc)
	if err != nil {
		return Params{}, gwerrors.Wrapf(gwerrors.ErrInvalidRequest, "date1 %q", date1)
	}
	d2, err := parseDate(date2, loc)
	if err != nil {
		return Params{}, gwerrors.Wrapf(gwerrors.ErrInvalidRequest, "date2 %q", date2)
	}
	ids, err := ParseIDs(branches)
	if err != nil {
		return Params{}, gwerrors.Wrapf(err, "branches")
	}
	if len(ids) == 0 {
		return Params{}, gwerrors.Wrapf(gwerrors.ErrInvalidRequest, "branches are required")
	}
	return Params{Date1: d1, Date2: d2, Branches: ids}, nil
}

// ParseIDs coerces a JSON-decoded id list to integers. Anything that is not
// an integer is rejected.
func ParseIDs(v any) ([]int, error) {
	var items []any
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
	case []any:
		items = t
	case []int:
		return append([]int(nil), t...), nil
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	default:
		items = []any{t}
	}

	ids := make([]int, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			item = strings.TrimSpace(s)
		}
		if f, ok := item.(float64); ok && f != float64(int(f)) {
			return nil, gwerrors.Wrapf(gwerrors.ErrInvalidRequest, "id %v is not an integer", item)
		}
		id, err := cast.ToIntE(item)
		if err != nil {
			return nil, gwerrors.Wrapf(gwerrors.ErrInvalidRequest, "id %v is not an integer", item)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	var (
		t   time.Time
		err error
	)
	for _, layout := range dateLayouts {
		t, err = time.ParseInLocation(layout, value, loc)
		if err == nil {
			t = t.In(loc)
			return time.Date(t.Year(), t.Month(), t.Day(), dayBoundaryHour, 0, 0, 0, loc), nil
		}
	}
	return time.Time{}, err
}

// Render fills the @date1, @date2 and @BranchID markers of a stored report
// template. Values are substituted as text, so Params must come from
// NewParams.
func Render(template string, p Params) string {
	sql := strings.TrimRight(template, "; \t\r\n")
	sql = strings.NewReplacer(
		"@date1", quoteDate(p.Date1),
		"@date2", quoteDate(p.Date2),
		"@BranchID", "BranchID IN("+joinIDs(p.Branches)+")",
	).Replace(sql)
	return strings.ReplaceAll(sql, "BranchID = BranchID IN(", "BranchID IN(")
}

func quoteDate(t time.Time) string {
	return "'" + t.Format(sqlDateLayout) + "'"
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// templateParams mirrors the substituted values for diagnostics.
func (p Params) templateParams() map[string]any {
	return map[string]any{
		"date1":    p.Date1.Format(sqlDateLayout),
		"date2":    p.Date2.Format(sqlDateLayout),
		"branches": joinIDs(p.Branches),
	}
}
