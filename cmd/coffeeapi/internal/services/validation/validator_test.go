package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidator_DrinkCreate(t *testing.T) {
	v, err := NewSchemaValidator(8)
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "recipe list", body: `{"title":"Water","recipe":[{"color":"blue","name":"water","parts":1}]}`},
		{name: "single ingredient", body: `{"title":"Water","recipe":{"color":"blue","name":"water","parts":1}}`},
		{name: "empty recipe", body: `{"title":"Nothing","recipe":[]}`},
		{name: "fractional parts", body: `{"title":"Flat White","recipe":[{"color":"grey","name":"milk","parts":1.5}]}`},
		{name: "extra fields ignored", body: `{"title":"Water","recipe":[],"id":99}`},
		{name: "missing title", body: `{"recipe":[]}`, wantErr: true},
		{name: "missing recipe", body: `{"title":"Water"}`, wantErr: true},
		{name: "empty title", body: `{"title":"","recipe":[]}`, wantErr: true},
		{name: "title too long", body: `{"title":"` + strings.Repeat("x", 81) + `","recipe":[]}`, wantErr: true},
		{name: "title not a string", body: `{"title":42,"recipe":[]}`, wantErr: true},
		{name: "ingredient without name", body: `{"title":"Water","recipe":[{"color":"blue","parts":1}]}`, wantErr: true},
		{name: "negative parts", body: `{"title":"Water","recipe":[{"color":"blue","name":"water","parts":-1}]}`, wantErr: true},
		{name: "recipe is a string", body: `{"title":"Water","recipe":"water"}`, wantErr: true},
		{name: "not an object", body: `[1,2,3]`, wantErr: true},
		{name: "malformed JSON", body: `{"title":`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(SchemaDrinkCreate, []byte(tt.body))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDocument), "got %v", err)
		})
	}
}

func TestSchemaValidator_DrinkUpdate(t *testing.T) {
	v, err := NewSchemaValidator(8)
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "title only", body: `{"title":"Latte"}`},
		{name: "recipe only", body: `{"recipe":[{"color":"brown","name":"coffee","parts":2}]}`},
		{name: "empty object", body: `{}`},
		{name: "explicit nulls", body: `{"title":null,"recipe":null}`},
		{name: "bad ingredient", body: `{"recipe":[{"color":"brown"}]}`, wantErr: true},
		{name: "empty title", body: `{"title":""}`, wantErr: true},
		{name: "null document", body: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(SchemaDrinkUpdate, []byte(tt.body))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidDocument), "got %v", err)
		})
	}
}

func TestSchemaValidator_ErrorPath(t *testing.T) {
	v, err := NewSchemaValidator(8)
	require.NoError(t, err)

	err = v.Validate(SchemaDrinkCreate, []byte(`{"title":7,"recipe":[]}`))
	var docErr *DocumentError
	require.True(t, errors.As(err, &docErr))
	assert.Equal(t, SchemaDrinkCreate, docErr.Schema)
	assert.Contains(t, docErr.Error(), "validation failed at")
}

func TestSchemaValidator_Cache(t *testing.T) {
	v, err := NewSchemaValidator(8)
	require.NoError(t, err)
	assert.Equal(t, 0, v.GetCacheSize())

	require.NoError(t, v.Validate(SchemaDrinkUpdate, []byte(`{}`)))
	require.NoError(t, v.Validate(SchemaDrinkUpdate, []byte(`{}`)))
	assert.Equal(t, 1, v.GetCacheSize())

	require.NoError(t, v.Validate(SchemaDrinkCreate, []byte(`{"title":"a","recipe":[]}`)))
	assert.Equal(t, 2, v.GetCacheSize())
}

func TestSchemaValidator_UnknownSchema(t *testing.T) {
	v, err := NewSchemaValidator(8)
	require.NoError(t, err)

	err = v.Validate("order-create", []byte(`{}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidDocument))
}
