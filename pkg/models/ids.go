package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// SessionID is a typed ID for game sessions
type SessionID struct {
	uuid uuid.UUID
}

func NewSessionID() SessionID {
	return SessionID{uuid: uuid.New()}
}

func NewSessionIDFromUUID(id uuid.UUID) SessionID {
	return SessionID{uuid: id}
}

func ParseSessionID(s string) (SessionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, fmt.Errorf("invalid session ID: %w", err)
	}
	return SessionID{uuid: id}, nil
}

func (s SessionID) UUID() uuid.UUID { return s.uuid }
func (s SessionID) String() string  { return s.uuid.String() }
func (s SessionID) IsZero() bool    { return s.uuid == uuid.Nil }

func (s SessionID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: "sessions",
		ID:    s.uuid.String(),
	}
}

func (s SessionID) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.uuid.String())
}

func (s *SessionID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return err
	}
	s.uuid = id
	return nil
}

func (s SessionID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{"sessions", s.uuid.String()},
	})
}

func (s *SessionID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, "sessions", &s.uuid)
}

func (s SessionID) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	return s.uuid.String(), nil
}

func (s *SessionID) Scan(value any) error {
	return scanUUID(value, &s.uuid)
}

func (SessionID) GormDataType() string { return "uuid" }

// UserID is a typed ID for player accounts
type UserID struct {
	uuid uuid.UUID
}

func NewUserID() UserID {
	return UserID{uuid: uuid.New()}
}

func NewUserIDFromUUID(id uuid.UUID) UserID {
	return UserID{uuid: id}
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user ID: %w", err)
	}
	return UserID{uuid: id}, nil
}

func (u UserID) UUID() uuid.UUID { return u.uuid }
func (u UserID) String() string  { return u.uuid.String() }
func (u UserID) IsZero() bool    { return u.uuid == uuid.Nil }

func (u UserID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: "users",
		ID:    u.uuid.String(),
	}
}

func (u UserID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.uuid.String())
}

func (u *UserID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return err
	}
	u.uuid = id
	return nil
}

func (u UserID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{"users", u.uuid.String()},
	})
}

func (u *UserID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, "users", &u.uuid)
}

func (u UserID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.uuid.String(), nil
}

func (u *UserID) Scan(value any) error {
	return scanUUID(value, &u.uuid)
}

func (UserID) GormDataType() string { return "uuid" }

// scanUUID fills target from a database column value. SQLite hands uuids
// back as TEXT, some drivers as raw bytes; NULL scans to the nil uuid.
func scanUUID(value any, target *uuid.UUID) error {
	switch v := value.(type) {
	case nil:
		*target = uuid.Nil
		return nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
		return nil
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
		return nil
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
}

// unmarshalCBORID decodes a SurrealDB record id, which arrives on the wire
// as CBOR tag 8 wrapping a [table, id] pair, and checks the table matches.
func unmarshalCBORID(data []byte, wantTable string, target *uuid.UUID) error {
	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("decode record id tag: %w", err)
	}
	if tag.Number != 8 {
		return fmt.Errorf("record id: want tag 8, got %d", tag.Number)
	}

	pair, ok := tag.Content.([]any)
	if !ok || len(pair) != 2 {
		return fmt.Errorf("record id: content is not a [table, id] pair")
	}
	table, ok := pair[0].(string)
	if !ok {
		return fmt.Errorf("record id: table is %T, not string", pair[0])
	}
	if table != wantTable {
		return fmt.Errorf("record id: table %q, want %q", table, wantTable)
	}
	idStr, ok := pair[1].(string)
	if !ok {
		return fmt.Errorf("record id: id is %T, not string", pair[1])
	}

	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	*target = parsed
	return nil
}
