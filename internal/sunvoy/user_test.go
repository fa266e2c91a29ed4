package sunvoy

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	cases := []struct {
		name         string
		raw          RawUser
		invalidField string
	}{
		{
			name: "numeric id",
			raw:  RawUser{"id": json.Number("9"), "name": "Ann", "email": "ann@x.com"},
		},
		{
			name: "string id from markup",
			raw:  RawUser{"id": "7", "email": "z@z.com"},
		},
		{
			name:         "zero id",
			raw:          RawUser{"id": json.Number("0"), "email": "a@b.com"},
			invalidField: "id",
		},
		{
			name:         "empty id",
			raw:          RawUser{"id": "", "email": "a@b.com"},
			invalidField: "id",
		},
		{
			name:         "missing id",
			raw:          RawUser{"email": "a@b.com"},
			invalidField: "id",
		},
		{
			name:         "boolean id",
			raw:          RawUser{"id": true, "email": "a@b.com"},
			invalidField: "id",
		},
		{
			name:         "missing email",
			raw:          RawUser{"id": json.Number("1"), "name": "Ann"},
			invalidField: "email",
		},
		{
			name:         "blank email",
			raw:          RawUser{"id": json.Number("1"), "email": "  "},
			invalidField: "email",
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewUser(test.raw)
			if test.invalidField == "" {
				require.NoError(t, err)
				return
			}
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "expected a ValidationError, got %v", err)
			require.Equal(t, test.invalidField, validationErr.Field)
		})
	}
}

func TestUserFields(t *testing.T) {
	user, err := NewUser(RawUser{
		"id":    json.Number("42"),
		"name":  " Ann ",
		"email": "ann@x.com",
		"extra": "dropped",
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, "42", user.ID().String())
	require.True(t, user.ID().IsNumeric())
	require.Equal(t, "Ann", user.Name())
	require.Equal(t, "ann@x.com", user.Email())
	require.Equal(t, "", user.Role())
}

func TestUserMarshalJSON(t *testing.T) {
	numeric, err := NewUser(RawUser{"id": json.Number("9"), "name": "Ann", "email": "ann@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(numeric)
	if err != nil {
		t.Fatal(err)
	}
	require.JSONEq(t, `{"id": 9, "name": "Ann", "email": "ann@x.com"}`, string(out))

	textual, err := NewUser(RawUser{"id": "u-1", "email": "bob@x.com", "role": "admin"})
	if err != nil {
		t.Fatal(err)
	}
	out, err = json.Marshal(textual)
	if err != nil {
		t.Fatal(err)
	}
	require.JSONEq(t, `{"id": "u-1", "name": "", "email": "bob@x.com", "role": "admin"}`, string(out))
}

func TestDecodeUsers(t *testing.T) {
	users, err := DecodeUsers([]byte(`[
		{"id": 1, "name": "Ann", "email": "ann@x.com"},
		{"id": "2", "name": "Bob", "email": "bob@x.com"}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, users, 2)
	require.True(t, users[0].ID().IsNumeric())
	require.False(t, users[1].ID().IsNumeric())

	_, err = DecodeUsers([]byte(`[{"id": 1}]`))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = DecodeUsers([]byte(`{"id": 1}`))
	require.Error(t, err)
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		value    any
		expected bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"0", true},
		{json.Number("0"), false},
		{json.Number("0.0"), false},
		{json.Number("12"), true},
		{float64(0), false},
		{float64(3), true},
		{map[string]any{}, true},
		{[]any{}, true},
	}

	for _, test := range cases {
		require.Equal(t, test.expected, truthy(test.value), "truthy(%#v)", test.value)
	}
}
