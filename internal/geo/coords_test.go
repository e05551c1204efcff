package geo

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		lat, lng float64
		query    string
	}{
		{"degrees minutes", "Argentina, 34°36'S 58°22'W, 1905", -34.6, -58.3667, "34°36'S 58°22'W"},
		{"seconds", `Brazil 22°54'30"S, 43°10'12"W Muller`, -22.9083, -43.17, `22°54'30"S, 43°10'12"W`},
		{"cyrillic cardinals", "Крым 44°57'С 34°06'В 1912", 44.95, 34.1, "44°57'С 34°06'В"},
		{"ocr latin c for north", "44°57'C 34°06'E", 44.95, 34.1, "44°57'C 34°06'E"},
		{"cyrillic south west", "10°30'Ю, 20°15'З", -10.5, -20.25, "10°30'Ю, 20°15'З"},
		{"decimal minutes", "12°30,5'N 100°0'E", 12.5083, 100, "12°30,5'N 100°0'E"},
		{"degrees only", "34.6°S 58.4°W", -34.6, -58.4, "34.6°S 58.4°W"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := ParseCoordinates(tt.text)
			require.True(t, ok)
			assert.InDelta(t, tt.lat, p.Lat, 1e-4)
			assert.InDelta(t, tt.lng, p.Lng, 1e-4)
			assert.Equal(t, tt.query, p.Query)
			assert.Equal(t, p.Name, p.Address())
		})
	}
}

func TestParseCoordinates_Rejects(t *testing.T) {
	for _, text := range []string{
		"Argentina, Buenos Aires 1905",
		"95°00'N 10°00'E",
		"10°75'N 10°00'E",
		"10°00'N 190°00'E",
		"34°36'S",
	} {
		_, ok := ParseCoordinates(text)
		assert.False(t, ok, text)
	}
}

func TestFormatLatLng(t *testing.T) {
	assert.Equal(t, "34.6000°S 58.3667°W", FormatLatLng(-34.6, -58.36667))
	assert.Equal(t, "44.9500°N 34.1000°E", FormatLatLng(44.95, 34.1))
}

func TestGeocode_WrittenCoordinatesSkipGazetteer(t *testing.T) {
	var calls int32
	srv := gazetteer(t, map[string]geoname{"argentina": {GeonameID: 2, Name: "Argentina", FCL: "A"}}, &calls)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.opts.Coordinates = true
	place, ok, err := c.Geocode(context.Background(), "Argentina 34°36'S 58°22'W")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "34.6000°S 58.3667°W", place.Name)
	assert.Zero(t, atomic.LoadInt32(&calls))

	c.opts.Coordinates = false
	place, ok, err = c.Geocode(context.Background(), "Argentina 34°36'S 58°22'W")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Argentina", place.Name)
	assert.NotZero(t, atomic.LoadInt32(&calls))
}

func TestCoordinates_Geocoder(t *testing.T) {
	p, ok, err := Coordinates{}.Geocode(context.Background(), "44°57'С 34°06'В")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 44.95, p.Lat, 1e-4)

	_, ok, err = Coordinates{}.Geocode(context.Background(), "no position here")
	require.NoError(t, err)
	assert.False(t, ok)
}
