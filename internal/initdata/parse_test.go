package initdata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	fields, err := Parse("a=1&b=hello+world&c=%7B%7D&a=2")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2", "b": "hello world", "c": "{}"}, fields)

	_, err = Parse("%zz")
	assert.Error(t, err)
}

func TestParseUser(t *testing.T) {
	fields, err := Parse(testBlob)
	require.NoError(t, err)

	u, err := ParseUser(fields)
	require.NoError(t, err)
	assert.Equal(t, User{ID: 42, FirstName: "Ada", Username: "ada_l"}, u)
}

func TestParseUser_Missing(t *testing.T) {
	_, err := ParseUser(map[string]string{"auth_date": "1"})
	assert.True(t, errors.Is(err, ErrMissingUser))

	_, err = ParseUser(map[string]string{"user": ""})
	assert.True(t, errors.Is(err, ErrMissingUser))
}

func TestParseUser_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"id":`,
		"no id":         `{"first_name":"Ada"}`,
		"string id":     `{"id":"42"}`,
		"fractional id": `{"id":4.2}`,
		"bad name":      `{"id":42,"username":7}`,
		"array":         `[42]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseUser(map[string]string{"user": raw})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidUser))
		})
	}
}

func TestParseUser_IntegralFloatID(t *testing.T) {
	for _, raw := range []string{`{"id":42.0}`, `{"id":4.2e1}`, `{"id":42}`} {
		u, err := ParseUser(map[string]string{"user": raw})
		require.NoError(t, err, raw)
		assert.Equal(t, int64(42), u.ID, raw)
	}

	_, err := ParseUser(map[string]string{"user": `{"id":1e30}`})
	assert.True(t, errors.Is(err, ErrInvalidUser))
}

func TestParseUser_CaseVariantKeys(t *testing.T) {
	u, err := ParseUser(map[string]string{"user": `{"id":42,"ID":99,"Username":"mallory","username":"ada_l"}`})
	require.NoError(t, err)
	assert.Equal(t, User{ID: 42, Username: "ada_l"}, u)
}
