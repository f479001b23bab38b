package ccdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halld-offline/conddb/internal/model"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		in   string
		want Request
	}{
		{"/CDC/gains", Request{Path: "/CDC/gains", Variation: "default"}},
		{"/CDC/gains:71350", Request{Path: "/CDC/gains", Run: 71350, Variation: "default"}},
		{"/CDC/gains:71350:mc", Request{Path: "/CDC/gains", Run: 71350, Variation: "mc"}},
		{"/CDC/gains::mc", Request{Path: "/CDC/gains", Variation: "mc"}},
		{"/CDC/gains:71350:mc:2024-05", Request{
			Path: "/CDC/gains", Run: 71350, Variation: "mc",
			AsOf: time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC),
		}},
		{"/CDC/gains:71350::2024-05-02", Request{
			Path: "/CDC/gains", Run: 71350, Variation: "default",
			AsOf: time.Date(2024, 5, 2, 23, 59, 59, 0, time.UTC),
		}},
		// The timestamp field may itself contain colons.
		{"/CDC/gains:1:default:2024-05-02 10:11:12", Request{
			Path: "/CDC/gains", Run: 1, Variation: "default",
			AsOf: time.Date(2024, 5, 2, 10, 11, 12, 0, time.UTC),
		}},
	}
	for _, tt := range tests {
		got, err := ParseRequest(tt.in)
		require.NoError(t, err, "ParseRequest(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseRequest(%q)", tt.in)
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	for _, in := range []string{
		"CDC/gains:1",     // relative path
		"/CDC/gains:-1",   // negative run
		"/CDC/gains:run",  // non-numeric run
		"/CDC/gains:2147483648", // past MaxRunNumber
		"/CDC/gains:1:default:someday",
	} {
		_, err := ParseRequest(in)
		assert.Error(t, err, "ParseRequest(%q)", in)
	}
}

func TestRequest_KeyCarriesAllFields(t *testing.T) {
	asOf := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	req := Request{Path: "/CDC/gains", Run: 5, Variation: "mc", AsOf: asOf}
	key := req.Key()
	assert.Equal(t, Key{Path: "/CDC/gains", Run: 5, Variation: "mc", AsOf: asOf}, key)
	assert.Equal(t, model.RunNumber(5), key.Run)
}

func TestKey_StringDistinguishesAsOf(t *testing.T) {
	base := Key{Path: "/CDC/gains", Run: 1, Variation: "default"}
	withAsOf := base
	withAsOf.AsOf = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.NotEqual(t, base.String(), withAsOf.String())
}
