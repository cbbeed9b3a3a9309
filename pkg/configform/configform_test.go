package configform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

func urlField(id string, required bool) skill.ConfigField {
	return skill.ConfigField{ID: id, Label: id, Type: skill.FieldURL, Required: required}
}

func TestValidateValue(t *testing.T) {
	t.Run("RequiredEmpty", func(t *testing.T) {
		err := ValidateValue(urlField("website_url", true), "")
		require.Error(t, err)
		var fieldErr *FieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "website_url", fieldErr.FieldID)
	})

	t.Run("OptionalEmpty", func(t *testing.T) {
		assert.NoError(t, ValidateValue(urlField("website_url", false), ""))
	})

	t.Run("URL", func(t *testing.T) {
		assert.NoError(t, ValidateValue(urlField("u", true), "https://example.com"))
		assert.NoError(t, ValidateValue(urlField("u", true), "postgres://db:5432/app"))
		assert.Error(t, ValidateValue(urlField("u", true), "example.com"))
		assert.Error(t, ValidateValue(urlField("u", true), "https:// has spaces"))
	})

	t.Run("Email", func(t *testing.T) {
		field := skill.ConfigField{ID: "e", Type: skill.FieldEmail, Required: true}
		assert.NoError(t, ValidateValue(field, "ops@example.com"))
		assert.Error(t, ValidateValue(field, "ops@example"))
		assert.Error(t, ValidateValue(field, "not-an-email"))
	})

	t.Run("Number", func(t *testing.T) {
		field := skill.ConfigField{ID: "n", Type: skill.FieldNumber, Required: true}
		assert.NoError(t, ValidateValue(field, "42"))
		assert.NoError(t, ValidateValue(field, "3.5"))
		assert.Error(t, ValidateValue(field, "forty-two"))
	})

	t.Run("TextAndPasswordAcceptAnything", func(t *testing.T) {
		assert.NoError(t, ValidateValue(skill.ConfigField{ID: "t", Type: skill.FieldText, Required: true}, "anything"))
		assert.NoError(t, ValidateValue(skill.ConfigField{ID: "p", Type: skill.FieldPassword, Required: true}, "s3cret!"))
	})
}

func TestFormRequiredFirstOrdering(t *testing.T) {
	form := New([]skill.ConfigField{
		{ID: "optional_a", Required: false},
		{ID: "required_a", Required: true},
		{ID: "optional_b", Required: false},
		{ID: "required_b", Required: true},
	})

	var ids []string
	for _, f := range form.Fields() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"required_a", "required_b", "optional_a", "optional_b"}, ids)
}

func TestFormProgressionBlockedByRequired(t *testing.T) {
	form := New([]skill.ConfigField{
		urlField("website_url", true),
		{ID: "note", Type: skill.FieldText, Required: false},
	})

	assert.False(t, form.Complete())
	_, err := form.Submit()
	require.Error(t, err)

	require.Error(t, form.Set("website_url", "not a url"))
	assert.False(t, form.Complete())

	require.NoError(t, form.Set("website_url", "https://example.com"))
	assert.True(t, form.Complete())

	values, err := form.Submit()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"website_url": "https://example.com"}, values)
}

func TestFormAllOptionalSkip(t *testing.T) {
	form := New([]skill.ConfigField{
		{ID: "note", Type: skill.FieldText, Required: false},
	})

	values, err := form.Submit()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestFormValidateAggregatesErrors(t *testing.T) {
	form := New([]skill.ConfigField{
		urlField("a", true),
		{ID: "b", Type: skill.FieldEmail, Required: true},
	})
	_ = form.Set("b", "")

	err := form.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a:")
	assert.Contains(t, err.Error(), "b:")
}

func TestFormUnknownField(t *testing.T) {
	form := New(nil)
	assert.Error(t, form.Set("nope", "v"))
	assert.True(t, form.Empty())
}

func TestFormInvalidValueKeptForEditing(t *testing.T) {
	form := New([]skill.ConfigField{urlField("u", true)})
	_ = form.Set("u", "oops")
	assert.Equal(t, "oops", form.Value("u"))
}
