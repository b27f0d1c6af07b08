package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusUnread, StatusRead, StatusTooManyAttempts, StatusDeleted} {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("CORRUPTED")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)

	assert.False(t, StatusUnread.Terminal())
	assert.True(t, StatusRead.Terminal())
	assert.True(t, StatusTooManyAttempts.Terminal())
	assert.True(t, StatusDeleted.Terminal())
}

func TestPayloadJSON(t *testing.T) {
	file := Payload{Type: PayloadFile, Name: "report.pdf", Data: []byte{1, 2, 3}}
	raw, err := json.Marshal(file)
	require.NoError(t, err)

	var got Payload
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, file, got)

	// Text payloads never carry a name, even if one was set.
	text := Payload{Type: PayloadText, Name: "ignored", Data: []byte("hi")}
	raw, err = json.Marshal(text)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Empty(t, got.Name)
	assert.Equal(t, []byte("hi"), got.Data)

	var bad Payload
	err = json.Unmarshal([]byte(`{"type":"blob","data":"aGk="}`), &bad)
	assert.Error(t, err)
}
