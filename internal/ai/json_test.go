package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type city struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

func requireName(c *city) error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestGenerateJSONParsesFencedOutput(t *testing.T) {
	p := &fakeProvider{name: ProviderAnthropic, text: "```json\n{\"name\":\"Kyoto\",\"country\":\"Japan\"}\n```"}
	c, err := NewClient([]Provider{p})
	require.NoError(t, err)

	req := userRequest("pick a city")
	req.System = "You are a travel agent."
	got, resp, err := GenerateJSON(context.Background(), c, req, HintAuto, requireName)
	require.NoError(t, err)
	assert.Equal(t, &city{Name: "Kyoto", Country: "Japan"}, got)
	assert.Equal(t, ProviderAnthropic, resp.Provider)

	sent := p.seen[0]
	assert.True(t, sent.JSONMode)
	assert.Contains(t, sent.System, "You are a travel agent.")
	assert.Contains(t, sent.System, jsonOnlyInstruction)
}

func TestGenerateJSONInvalidJSONCarriesRawText(t *testing.T) {
	raw := "Sure! Here are some cities: Kyoto, Lisbon"
	c, err := NewClient([]Provider{&fakeProvider{name: ProviderOpenAI, text: raw}})
	require.NoError(t, err)

	got, resp, err := GenerateJSON[city](context.Background(), c, userRequest("pick"), HintAuto, nil)
	assert.Nil(t, got)
	require.NotNil(t, resp)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, raw, e.Details)
	assert.Equal(t, ProviderOpenAI, e.Provider)
}

func TestGenerateJSONValidationFailure(t *testing.T) {
	raw := `{"country":"Japan"}`
	c, err := NewClient([]Provider{&fakeProvider{name: ProviderGemini, text: raw}})
	require.NoError(t, err)

	got, _, err := GenerateJSON(context.Background(), c, userRequest("pick"), HintAuto, requireName)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, raw, e.Details)
	assert.Contains(t, e.Message, "name is required")
}

func TestGenerateJSONPropagatesProviderError(t *testing.T) {
	c, err := NewClient([]Provider{&fakeProvider{name: ProviderGemini, err: &Error{Kind: KindQuotaExceeded}}})
	require.NoError(t, err)

	_, resp, err := GenerateJSON[city](context.Background(), c, userRequest("pick"), HintAuto, nil)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestCleanJSONString(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONString("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1,2]`, cleanJSONString("```\n[1,2]\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSONString(`  {"a":1}  `))
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.0105, EstimateCost("claude-3-5-sonnet-20241022", 1000, 500), 1e-12)
	assert.InDelta(t, 0.0075, EstimateCost("gpt-4o-2024-08-06", 1000, 500), 1e-12)
	assert.InDelta(t, 0.00045, EstimateCost("gpt-4o-mini-2024-07-18", 1000, 500), 1e-12)
	assert.Equal(t, 0.0, EstimateCost("unknown-model", 1000, 500))
	assert.Equal(t, 0.0, EstimateCost("gpt-4o", -10, -10))
}
