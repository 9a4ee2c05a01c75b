package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/models"
)

const dateLayout = "2006-01-02"

// filterInput is the filter selection as sent by a client, either in the
// query string of the JSON API or as datastar signals.
type filterInput struct {
	Regions       []string `json:"regions" validate:"max=100,dive,max=200"`
	Categories    []string `json:"categories" validate:"max=100,dive,max=200"`
	SubCategories []string `json:"subCategories" validate:"max=500,dive,max=200"`
	StartDate     string   `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate       string   `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

var filterValidator = validator.New(validator.WithRequiredStructEnabled())

func filterFromQuery(r *http.Request) filterInput {
	q := r.URL.Query()
	return filterInput{
		Regions:       nonEmpty(q["region"]),
		Categories:    nonEmpty(q["category"]),
		SubCategories: nonEmpty(q["sub_category"]),
		StartDate:     strings.TrimSpace(q.Get("start")),
		EndDate:       strings.TrimSpace(q.Get("end")),
	}
}

// specBuilder applies the server's empty selection policy to a selection.
type specBuilder interface {
	Spec(regions, categories, subCategories []string, dates models.DateRange) models.FilterSpec
}

// spec validates the input and converts it to a filter spec. Violations are
// returned as VALIDATION_ERROR app errors.
func (in filterInput) spec(b specBuilder) (models.FilterSpec, error) {
	if err := filterValidator.Struct(in); err != nil {
		return models.FilterSpec{}, errors.ValidationWrap(err, "Invalid filter").WithDetails(describe(err))
	}

	var dates models.DateRange
	var err error
	if dates.Start, err = parseDate(in.StartDate); err != nil {
		return models.FilterSpec{}, errors.ValidationWrap(err, "Invalid start date")
	}
	if dates.End, err = parseDate(in.EndDate); err != nil {
		return models.FilterSpec{}, errors.ValidationWrap(err, "Invalid end date")
	}
	if !dates.Start.IsZero() && !dates.End.IsZero() && dates.End.Before(dates.Start) {
		return models.FilterSpec{}, errors.Validation("Invalid date range").
			WithDetails(fmt.Sprintf("start %s is after end %s", in.StartDate, in.EndDate))
	}

	return b.Spec(in.Regions, in.Categories, in.SubCategories, dates), nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
