package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeMessage(t *testing.T) {
	payload, err := json.Marshal(&ClientRegister{Username: "alice"})
	require.NoError(t, err)

	msg := &Message{
		ClientID: "conn-1",
		Type:     MessageTypeClientRegister,
		Payload:  payload,
	}

	b, err := SerializeMessage(msg)
	require.NoError(t, err)

	got, err := DeserializeMessage(b)
	require.NoError(t, err)
	assert.Equal(t, msg.ClientID, got.ClientID)
	assert.Equal(t, msg.Type, got.Type)

	register := &ClientRegister{}
	require.NoError(t, json.Unmarshal(got.Payload, register))
	assert.Equal(t, "alice", register.Username)
}

func TestDeserializeMessage_Invalid(t *testing.T) {
	_, err := DeserializeMessage([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodeRoomCode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{
			name:    "bare string code",
			payload: `"AB12"`,
			want:    "AB12",
		},
		{
			name:    "object payload is rejected",
			payload: `{"code":"AB12"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRoomCode(json.RawMessage(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
