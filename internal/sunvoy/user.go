package sunvoy

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawUser is a user record in whatever shape the source produced it. JSON sources
// are decoded with json.Number so numeric ids survive untouched, markup sources only
// ever produce strings.
type RawUser map[string]any

// userFields are the fields markup strategies look for, in the order they are read.
var userFields = []string{"id", "name", "email", "role"}

// decodeJSON decodes `data` keeping numbers as json.Number.
func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// truthy follows javascript's idea of truthiness for decoded JSON values, which is
// what the site's own payloads assume when they leave an id as 0, "" or null.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return true
	}
}

func stringField(raw RawUser, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// UserID is an id that remembers whether the source gave it as a number or a string,
// so that it is written back out in the same form.
type UserID struct {
	value   string
	numeric bool
}

func idFrom(v any) (UserID, bool) {
	switch v := v.(type) {
	case json.Number:
		return UserID{value: v.String(), numeric: true}, true
	case float64:
		return UserID{value: strconv.FormatFloat(v, 'f', -1, 64), numeric: true}, true
	case int:
		return UserID{value: strconv.Itoa(v), numeric: true}, true
	case int64:
		return UserID{value: strconv.FormatInt(v, 10), numeric: true}, true
	case string:
		v = strings.TrimSpace(v)
		return UserID{value: v}, v != ""
	default:
		return UserID{}, false
	}
}

func (id UserID) String() string {
	return id.value
}

func (id UserID) IsNumeric() bool {
	return id.numeric
}

func (id UserID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// User is a validated user record. It can only be built by NewUser and has no setters.
type User struct {
	id    UserID
	name  string
	email string
	role  string
}

// NewUser validates a raw record, it needs a truthy id and a non-empty email.
func NewUser(raw RawUser) (User, error) {
	if !truthy(raw["id"]) {
		return User{}, &ValidationError{Field: "id"}
	}
	id, ok := idFrom(raw["id"])
	if !ok {
		return User{}, &ValidationError{Field: "id"}
	}
	email := stringField(raw, "email")
	if email == "" {
		return User{}, &ValidationError{Field: "email"}
	}

	return User{
		id:    id,
		name:  stringField(raw, "name"),
		email: email,
		role:  stringField(raw, "role"),
	}, nil
}

func (u User) ID() UserID {
	return u.id
}

func (u User) Name() string {
	return u.name
}

func (u User) Email() string {
	return u.email
}

// Role is only ever set for users recovered from page markup.
func (u User) Role() string {
	return u.role
}

type userJson struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(userJson{
		ID:    u.id,
		Name:  u.name,
		Email: u.email,
		Role:  u.role,
	})
}

// DecodeUsers parses a JSON array of user records and validates each of them.
func DecodeUsers(data []byte) ([]User, error) {
	var raws []RawUser
	err := decodeJSON(data, &raws)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(raws))
	for _, raw := range raws {
		user, err := NewUser(raw)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}
