package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/labelsort/internal/daterange"
	"github.com/ppiankov/labelsort/internal/geo"
	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/names"
)

var (
	_ DateParser  = (*daterange.Parser)(nil)
	_ Geocoder    = (*geo.Client)(nil)
	_ Geocoder    = geo.Coordinates{}
	_ NameMatcher = (*names.Matcher)(nil)
)

type fakeGeocoder struct{}

func (fakeGeocoder) Geocode(_ context.Context, text string) (geo.Place, bool, error) {
	switch {
	case strings.Contains(text, "Buenos"):
		return geo.Place{Name: "Buenos Aires", CountryName: "Argentina"}, true, nil
	case strings.Contains(text, "Rio"):
		return geo.Place{}, false, errors.New("quota exceeded")
	default:
		return geo.Place{}, false, nil
	}
}

func newEnricher() *Enricher {
	collectors := []model.Collector{{ID: "C1", Name: "Frank", Firstname: "Jules"}}
	return &Enricher{
		Dates:    daterange.NewParser(),
		Geocoder: fakeGeocoder{},
		Names:    names.NewMatcher(collectors, 0.75),
		Workers:  2,
		Logger:   zerolog.Nop(),
	}
}

func TestLabels_FillsFields(t *testing.T) {
	labels := []model.Label{
		{ID: "A", Text: "Argentina Buenos Aires 1905 Frank"},
		{ID: "B", Text: "Brazil Rio 1910 Muller"},
		{ID: "X", Text: ""},
	}

	out, skipped, err := newEnricher().Labels(context.Background(), labels)
	require.NoError(t, err)
	require.Len(t, out, 3)

	a := out[0]
	require.NotNil(t, a.DateRange)
	assert.Equal(t, "1905", a.DateRange.String())
	require.NotNil(t, a.Collector)
	assert.Equal(t, "C1", *a.Collector)
	require.NotNil(t, a.Location)
	assert.Equal(t, "Buenos Aires, Argentina", *a.Location)
	require.NotNil(t, a.Verbatim)
	assert.Equal(t, model.Verbatim{Date: "1905", Collector: "Frank"}, *a.Verbatim)

	b := out[1]
	require.NotNil(t, b.DateRange)
	assert.Nil(t, b.Collector)
	assert.Nil(t, b.Location)

	assert.False(t, out[2].HasStructuredFields())

	require.Len(t, skipped, 1)
	assert.Equal(t, "B", skipped[0].ID)
	assert.Equal(t, 1, skipped[0].Index)
	assert.True(t, skipped[0].Degraded)

	assert.Nil(t, labels[0].DateRange, "input labels must not be modified")
}

func TestLabels_KeepsExistingFields(t *testing.T) {
	r := daterange.Single(daterange.YearOnly(1800))
	labels := []model.Label{{ID: "A", Text: "Buenos Aires 1905", DateRange: &r, Location: model.StringPtr("Here")}}

	out, _, err := newEnricher().Labels(context.Background(), labels)
	require.NoError(t, err)
	assert.Equal(t, "1800", out[0].DateRange.String())
	assert.Equal(t, "Here", *out[0].Location)
}

func TestLabels_WrittenCoordinates(t *testing.T) {
	e := &Enricher{Geocoder: geo.Coordinates{}, Logger: zerolog.Nop()}
	out, skipped, err := e.Labels(context.Background(), []model.Label{
		{ID: "A", Text: "Argentina 34°36'S 58°22'W 1905"},
		{ID: "B", Text: "Argentina 1905"},
	})
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.NotNil(t, out[0].Location)
	assert.Equal(t, "34.6000°S 58.3667°W", *out[0].Location)
	assert.Equal(t, "34°36'S 58°22'W", out[0].Verbatim.Geo)
	assert.Nil(t, out[1].Location)
}

func TestLabels_NoCollaborators(t *testing.T) {
	e := &Enricher{Logger: zerolog.Nop()}
	out, skipped, err := e.Labels(context.Background(), []model.Label{{ID: "A", Text: "Peru 1899"}})
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.False(t, out[0].HasStructuredFields())
}

func TestEvents_ParsesDates(t *testing.T) {
	events := []model.CollectingEvent{
		{ID: "E1", Location: "Argentina, Buenos Aires", Date: "1905", Collector: "Frank"},
		{ID: "E2", Date: "sometime", Text: "Brazil"},
		{ID: "E3", Text: "Peru"},
	}

	out, skipped := newEnricher().Events(events)
	require.Len(t, out, 3)
	require.NotNil(t, out[0].DateRange)
	assert.Equal(t, "Argentina, Buenos Aires, 1905, Frank", out[0].Text)
	assert.Nil(t, out[1].DateRange)
	assert.Equal(t, "Brazil", out[1].Text)

	require.Len(t, skipped, 2)
	assert.Equal(t, "E2", skipped[0].ID)
	assert.Contains(t, skipped[0].Reason, "unparseable")
	assert.Equal(t, "E3", skipped[1].ID)
	assert.Equal(t, "no date", skipped[1].Reason)
	for _, s := range skipped {
		assert.Equal(t, model.KindEvent, s.Kind)
		assert.True(t, s.Degraded)
	}
}
