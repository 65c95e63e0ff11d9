package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(errs []FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name       string
		in         Input
		wantFields []string
	}{
		{
			name: "valid submission",
			in:   Input{Name: "Jo", Email: "jo@x.com", Message: "hi"},
		},
		{
			name:       "missing name",
			in:         Input{Email: "jo@x.com", Message: "hi"},
			wantFields: []string{"name"},
		},
		{
			name:       "whitespace-only name and message",
			in:         Input{Name: "   ", Email: "jo@x.com", Message: "\n\t"},
			wantFields: []string{"name", "message"},
		},
		{
			name:       "malformed email",
			in:         Input{Name: "Jo", Email: "not-an-address", Message: "hi"},
			wantFields: []string{"email"},
		},
		{
			name:       "empty email",
			in:         Input{Name: "Jo", Message: "hi"},
			wantFields: []string{"email"},
		},
		{
			name:       "everything missing reports all fields in order",
			in:         Input{},
			wantFields: []string{"name", "email", "message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, errs := v.Validate(tt.in)
			if len(tt.wantFields) == 0 {
				require.Empty(t, errs)
				assert.Equal(t, "Jo", sub.Name)
				return
			}
			assert.Equal(t, tt.wantFields, fields(errs))
		})
	}
}

func TestValidateTrimsFields(t *testing.T) {
	sub, errs := New().Validate(Input{Name: "  Jo ", Email: " jo@x.com ", Message: " hi there \n"})
	require.Empty(t, errs)
	assert.Equal(t, Submission{Name: "Jo", Email: "jo@x.com", Message: "hi there"}, sub)
}

func TestValidateMessages(t *testing.T) {
	_, errs := New().Validate(Input{})
	require.Len(t, errs, 3)
	assert.Equal(t, FieldError{Field: "name", Message: MsgNameRequired}, errs[0])
	assert.Equal(t, FieldError{Field: "email", Message: MsgInvalidEmail}, errs[1])
	assert.Equal(t, FieldError{Field: "message", Message: MsgMessageRequired}, errs[2])
}

func TestValidateObjectWrongTypes(t *testing.T) {
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{"name": 42, "email": "jo@x.com", "message": ["hi"]}`), &obj))

	_, errs := New().ValidateObject(obj)
	assert.Equal(t, []string{"name", "message"}, fields(errs))
}

func TestValidateBatch(t *testing.T) {
	v := New()

	t.Run("invalid element does not block the others", func(t *testing.T) {
		var items []json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(`[
			{"name":"Jo","email":"jo@x.com","message":"hi"},
			{"email":"ann@x.com","message":"hello"}
		]`), &items))

		valid, errs := v.ValidateBatch(items)
		require.Len(t, valid, 1)
		assert.Equal(t, 0, valid[0].Index)
		assert.Equal(t, "Jo", valid[0].Submission.Name)

		require.Len(t, errs, 1)
		assert.Equal(t, "[1].name", errs[0].Field)
		assert.Equal(t, MsgNameRequired, errs[0].Message)
	})

	t.Run("elements must be non-empty objects", func(t *testing.T) {
		var items []json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(`[{}, "text", null, 7, {"name":"A","email":"bad","message":"m"}]`), &items))

		valid, errs := v.ValidateBatch(items)
		assert.Empty(t, valid)
		assert.Equal(t, []string{"[0]", "[1]", "[2]", "[3]", "[4].email"}, fields(errs))
		assert.Equal(t, MsgItemNotObject, errs[0].Message)
	})

	t.Run("all valid", func(t *testing.T) {
		var items []json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(`[
			{"name":"A","email":"a@x.com","message":"1"},
			{"name":"B","email":"b@x.com","message":"2"}
		]`), &items))

		valid, errs := v.ValidateBatch(items)
		assert.Empty(t, errs)
		require.Len(t, valid, 2)
		assert.Equal(t, 1, valid[1].Index)
	})
}
