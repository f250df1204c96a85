package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	cases := []string{
		"2024-03-01T10:30:00Z",
		"2024-03-01T12:30:00+02:00",
		"2024-03-01T10:30:00",
		"2024-03-01T10:30:00.000",
		"2024-03-01 10:30:00",
	}
	for _, in := range cases {
		ts, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, ts.Equal(want), "%s parsed as %s", in, ts)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestMessageDecodesBackendPayload(t *testing.T) {
	raw := `{"id":"m1","senderId":"a","receiverId":"b","content":"hi","status":"READ",
		"createdAt":"2024-03-01T10:30:00.123456","updatedAt":null,"valid":true}`

	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, StatusRead, m.Status)
	assert.Equal(t, 123456000, m.CreatedAt.Nanosecond())
	assert.True(t, m.UpdatedAt.IsZero())
	assert.False(t, m.IsGroup())
}

func TestMessageRejectsBadTimestamp(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"id":"m1","createdAt":"not a date"}`), &m)
	assert.Error(t, err)
}

func TestTimestampMarshalUTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	ts := NewTimestamp(time.Date(2024, 3, 1, 11, 0, 0, 0, loc))

	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01T10:00:00Z"`, string(b))

	b, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", UserProfile{FirstName: "Ada", LastName: "Lovelace"}.DisplayName())
}
