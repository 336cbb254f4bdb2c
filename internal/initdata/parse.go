package initdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"

	"github.com/orlandnut/voicednut/internal/schema"
)

var (
	ErrMissingUser = errors.New("initdata: user field missing")
	ErrInvalidUser = errors.New("initdata: invalid user")
)

// User is the identity embedded in a verified blob.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

var userSchema = schema.MustCompile("initdata-user", `{
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "integer"},
    "first_name": {"type": "string"},
    "last_name": {"type": "string"},
    "username": {"type": "string"}
  }
}`)

// Parse decodes blob into a flat map. When a key repeats, the last value wins.
// No signature check happens here.
func Parse(blob string) (map[string]string, error) {
	vals, err := url.ParseQuery(blob)
	if err != nil {
		return nil, fmt.Errorf("initdata: parse: %w", err)
	}
	fields := make(map[string]string, len(vals))
	for k, vs := range vals {
		if len(vs) == 0 {
			continue
		}
		fields[k] = vs[len(vs)-1]
	}
	return fields, nil
}

// ParseUser decodes the JSON-encoded user field.
func ParseUser(fields map[string]string) (User, error) {
	raw := fields["user"]
	if raw == "" {
		return User{}, ErrMissingUser
	}
	var u struct {
		ID json.Number `json:"id"`
		User
	}
	if err := userSchema.Decode([]byte(raw), &u); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	id, err := integerID(u.ID)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	u.User.ID = id
	return u.User, nil
}

// integerID accepts any integral JSON number, including forms like 42.0 or
// 4.2e1 that the schema already counts as integers.
func integerID(n json.Number) (int64, error) {
	if id, err := n.Int64(); err == nil {
		return id, nil
	}
	r, ok := new(big.Rat).SetString(n.String())
	if !ok || !r.IsInt() || !r.Num().IsInt64() {
		return 0, fmt.Errorf("user id %s is not a 64-bit integer", n)
	}
	return r.Num().Int64(), nil
}
