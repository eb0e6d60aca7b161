package messages

import (
	"encoding/json"
	"fmt"
)

// SerializeMessage encodes a message as a JSON text frame.
func SerializeMessage(m *Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}
	return b, nil
}

// DeserializeMessage decodes a JSON text frame into a message.
func DeserializeMessage(data []byte) (*Message, error) {
	message := &Message{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}
	return message, nil
}

// DecodeRoomCode decodes a room code payload. joinRoom, leaveRoom and
// startGame send the code as a bare JSON string.
func DecodeRoomCode(payload json.RawMessage) (string, error) {
	var code string
	if err := json.Unmarshal(payload, &code); err != nil {
		return "", fmt.Errorf("failed to decode room code: %v", err)
	}
	return code, nil
}
