package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTravelerProfileValidate(t *testing.T) {
	require.NoError(t, family.Validate())

	err := (&TravelerProfile{Adults: 0, Children: 1, ChildAges: []int{3, 19}, TripLengthDays: 90}).Validate()
	require.Error(t, err)
	for _, want := range []string{"origin is required", "at least one adult", "2 child ages given for 1 children", "child age 19", "trip length 90"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestItineraryRequestValidate(t *testing.T) {
	assert.NoError(t, (&ItineraryRequest{Destination: "Kyoto", Profile: family}).Validate())

	err := (&ItineraryRequest{Destination: " ", Profile: TravelerProfile{Origin: "Austin"}}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination is required")
	assert.Contains(t, err.Error(), "profile: at least one adult")
}

func TestSectionText(t *testing.T) {
	assert.Equal(t, "Activities", SectionActivities.Title())
	assert.Equal(t, "Tips recommendations are temporarily unavailable. Please try again later.", SectionTips.Placeholder())
}

func TestParseModelChoices(t *testing.T) {
	got, err := ParseModelChoices([]string{"Anthropic/claude-3-5-haiku-20241022", " openai/gpt-4o-mini "})
	require.NoError(t, err)
	assert.Equal(t, []ModelChoice{
		{Provider: "anthropic", Model: "claude-3-5-haiku-20241022"},
		{Provider: "openai", Model: "gpt-4o-mini"},
	}, got)
	assert.Equal(t, "openai/gpt-4o-mini", got[1].String())

	for _, bad := range []string{"gpt-4o", "/gpt-4o", "openai/"} {
		_, err := ParseModelChoices([]string{bad})
		assert.Error(t, err, bad)
	}
}
