package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// wireUser is the JSON shape shared with the backend. Backends emit numeric ids, older
// clients persisted string ids; both decode.
type wireUser struct {
	ID    json.RawMessage `json:"id"`
	Email string          `json:"email"`
	Name  string          `json:"name"`
	Role  string          `json:"role"`
}

// EncodeUser serializes u as {"id","email","name","role"}.
func EncodeUser(u UserRecord) ([]byte, error) {
	id, err := json.Marshal(u.ID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireUser{
		ID:    id,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	})
}

// DecodeUser parses a persisted or backend-supplied user. A record without an id is rejected.
func DecodeUser(data []byte) (*UserRecord, error) {
	var u UserRecord
	if err := u.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &u, nil
}

// MarshalJSON implements json.Marshaler.
func (u UserRecord) MarshalJSON() ([]byte, error) {
	return EncodeUser(u)
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UserRecord) UnmarshalJSON(data []byte) error {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptUser, err)
	}

	id, err := decodeID(w.ID)
	if err != nil {
		return err
	}

	*u = UserRecord{
		ID:    id,
		Email: w.Email,
		Name:  w.Name,
		Role:  w.Role,
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: missing id", ErrCorruptUser)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptUser, err)
		}
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("%w: missing id", ErrCorruptUser)
		}
		return s, nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("%w: id must be string or number", ErrCorruptUser)
	}
	return n.String(), nil
}
