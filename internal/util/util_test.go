package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherArgs struct {
	City  string   `json:"city" description:"City name"`
	Unit  string   `json:"unit,omitempty" enum:"celsius, fahrenheit"`
	Days  *int     `json:"days"`
	Tags  []string `json:"tags,omitempty"`
	inner string
}

func TestCreateSchema(t *testing.T) {
	s := CreateSchema(weatherArgs{})
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, []string{"city"}, s["required"])

	props := s["properties"].(map[string]any)
	require.Len(t, props, 4)

	city := props["city"].(map[string]any)
	assert.Equal(t, "string", city["type"])
	assert.Equal(t, "City name", city["description"])

	unit := props["unit"].(map[string]any)
	assert.Equal(t, []string{"celsius", "fahrenheit"}, unit["enum"])

	assert.Equal(t, "integer", props["days"].(map[string]any)["type"])

	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, map[string]any{"type": "string"}, tags["items"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	assert.Equal(t, "object", CreateSchema(42)["type"])
	assert.Equal(t, "object", CreateSchema(nil)["type"])
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Answer in {{.language}}. Today is {{.date}}.", map[string]any{"language": "german"})
	require.NoError(t, err)
	assert.Equal(t, "Answer in german. Today is .", out)

	out, err = RenderTemplate("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	out, err = RenderTemplate(`{{default "english" .language | upper}}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "ENGLISH", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
