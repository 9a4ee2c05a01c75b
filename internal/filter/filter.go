// Package filter selects the rows of a dataset that satisfy a FilterSpec.
package filter

import (
	"slices"
	"time"

	"superstore-dashboard/internal/models"
)

type dimension struct {
	column   string
	selected []string
	value    func(models.Record) string
}

// Apply returns the rows of ds matching every active constraint in spec.
// It never modifies ds and yields the same view for the same inputs.
func Apply(ds *models.Dataset, spec models.FilterSpec) models.FilteredView {
	view := models.FilteredView{Dataset: ds}
	if ds == nil {
		return view
	}

	var active []dimension
	for _, d := range dimensions(spec) {
		if !ds.HasColumn(d.column) {
			continue
		}
		if len(d.selected) == 0 {
			if spec.EmptySelectionMeansAll {
				continue
			}
			// An empty selection that means "nothing" matches no row.
			return view
		}
		active = append(active, d)
	}

	sets := make([]map[string]struct{}, len(active))
	for i, d := range active {
		sets[i] = toSet(d.selected)
	}

	start, end := dayStart(spec.Dates.Start), dayStart(spec.Dates.End)
	dated := spec.Dates.Active()

	for i, row := range ds.Rows {
		if !matches(row, active, sets) {
			continue
		}
		if dated && !inRange(row, start, end) {
			continue
		}
		view.Indices = append(view.Indices, i)
		view.Rows = append(view.Rows, row)
	}
	return view
}

func dimensions(spec models.FilterSpec) []dimension {
	return []dimension{
		{column: models.ColRegion, selected: spec.Regions, value: func(r models.Record) string { return r.Region }},
		{column: models.ColCategory, selected: spec.Categories, value: func(r models.Record) string { return r.Category }},
		{column: models.ColSubCategory, selected: spec.SubCategories, value: func(r models.Record) string { return r.SubCategory }},
	}
}

func matches(row models.Record, active []dimension, sets []map[string]struct{}) bool {
	for i, d := range active {
		if _, ok := sets[i][d.value(row)]; !ok {
			return false
		}
	}
	return true
}

func inRange(row models.Record, start, end time.Time) bool {
	if !row.HasOrderDate() {
		return false
	}
	day := dayStart(row.OrderDate)
	if !start.IsZero() && day.Before(start) {
		return false
	}
	if !end.IsZero() && day.After(end) {
		return false
	}
	return true
}

func dayStart(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Options lists the selectable values of each categorical column and the
// order-date bounds of ds.
func Options(ds *models.Dataset) models.FilterOptions {
	var opts models.FilterOptions
	if ds == nil {
		return opts
	}

	regions := map[string]struct{}{}
	categories := map[string]struct{}{}
	subCategories := map[string]struct{}{}

	for _, row := range ds.Rows {
		addNonEmpty(regions, row.Region)
		addNonEmpty(categories, row.Category)
		addNonEmpty(subCategories, row.SubCategory)

		if !row.HasOrderDate() {
			continue
		}
		if opts.MinDate.IsZero() || row.OrderDate.Before(opts.MinDate) {
			opts.MinDate = row.OrderDate
		}
		if row.OrderDate.After(opts.MaxDate) {
			opts.MaxDate = row.OrderDate
		}
	}

	opts.Regions = sortedKeys(regions)
	opts.Categories = sortedKeys(categories)
	opts.SubCategories = sortedKeys(subCategories)
	return opts
}

// SelectAll returns a spec selecting every available value, the default
// state of the dashboard sidebar.
func SelectAll(opts models.FilterOptions) models.FilterSpec {
	return models.FilterSpec{
		Regions:                slices.Clone(opts.Regions),
		Categories:             slices.Clone(opts.Categories),
		SubCategories:          slices.Clone(opts.SubCategories),
		EmptySelectionMeansAll: true,
	}
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
