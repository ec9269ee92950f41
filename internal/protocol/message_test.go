package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"move","payload":{"x":10,"y":20,"direction":"left"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeMove, env.Type)

	var p MovePayload
	require.NoError(t, env.DecodePayload(&p))
	assert.Equal(t, 10.0, p.X)
	assert.Equal(t, 20.0, p.Y)
	assert.Equal(t, "left", p.Direction)
	assert.Empty(t, p.CharacterVariant)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	for _, raw := range []string{"", "{", "not json", "42", `"move"`} {
		_, err := DecodeEnvelope([]byte(raw))
		assert.Error(t, err, "raw %q must not decode", raw)
	}
}

func TestDecodeEnvelope_MissingType(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"payload":{"x":1}}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing type")
}

func TestDecodePayload_Absent(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"join"}`))
	require.NoError(t, err)

	var p JoinPayload
	assert.Error(t, env.DecodePayload(&p))
}

func TestDecodePayload_WrongShape(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"join","payload":"office"}`))
	require.NoError(t, err)

	var p JoinPayload
	assert.Error(t, env.DecodePayload(&p))
}

func TestDecodeJoinPayload(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"join","payload":{"spaceId":"office","characterVariant":"lucy"}}`))
	require.NoError(t, err)

	var p JoinPayload
	require.NoError(t, env.DecodePayload(&p))
	assert.Equal(t, "office", p.SpaceID)
	assert.Equal(t, "lucy", p.CharacterVariant)
}

func TestDecodeChatPayload(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"chat-message","payload":{"text":"hi","sender":"u1"}}`))
	require.NoError(t, err)

	var p ChatPayload
	require.NoError(t, env.DecodePayload(&p))
	assert.Equal(t, "hi", p.Text)
	assert.Equal(t, "u1", p.Sender)
}

func TestSpaceJoined_EmptyRosterMarshalsAsArray(t *testing.T) {
	msg := NewSpaceJoined(Point{X: 190, Y: 190}, nil, "u1", "adam")

	data, err := msg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"users":[]`, "an empty roster must be [], not null")
}

func TestSpaceJoined_Shape(t *testing.T) {
	users := []UserInfo{{ID: "u2", Name: "bob", X: 1, Y: 2, CharacterVariant: "ash"}}
	msg := NewSpaceJoined(Point{X: 190, Y: 190}, users, "u1", "adam")

	data, err := msg.Encode()
	require.NoError(t, err)

	var decoded struct {
		Type    string             `json:"type"`
		Payload SpaceJoinedPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeSpaceJoined, decoded.Type)
	assert.Equal(t, "u1", decoded.Payload.CurrentUser)
	assert.Equal(t, 190.0, decoded.Payload.Spawn.X)
	require.Len(t, decoded.Payload.Users, 1)
	assert.Equal(t, "bob", decoded.Payload.Users[0].Name)
}

func TestMoveAndIdleShareShapeNotType(t *testing.T) {
	moved := NewUserMoved("u1", "alice", 1, 2, "up", "adam")
	idle := NewUserIdle("u1", "alice", 1, 2, "up", "adam")

	assert.Equal(t, TypeUserMoved, moved.Type)
	assert.Equal(t, TypeUserIdle, idle.Type)
	assert.Equal(t, moved.Payload, idle.Payload)
}

func TestUserLeft_Wire(t *testing.T) {
	data, err := NewUserLeft("u9").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-left","payload":{"userId":"u9"}}`, string(data))
}

func TestReceiveMessage_Wire(t *testing.T) {
	data, err := NewReceiveMessage("u1", "hello").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"receive-message","payload":{"id":"u1","text":"hello"}}`, string(data))
}

func TestNameSet_Wire(t *testing.T) {
	data, err := NewNameSet("alice", "ash").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"name-set","payload":{"name":"alice","characterVariant":"ash"}}`, string(data))
}
