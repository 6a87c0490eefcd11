package domain

import (
	"encoding/json"
	"fmt"
)

// MessageType is the discriminator of the {type, data} envelope
type MessageType string

const (
	MessageTypeMove         MessageType = "move"          // stone placement, both directions
	MessageTypeGameUpdate   MessageType = "game_update"   // seat/status change, server -> client
	MessageTypeAuthenticate MessageType = "authenticate"  // credential upgrade, client -> server
	MessageTypeAuthSuccess  MessageType = "auth_success"  // upgrade accepted
	MessageTypeAuthError    MessageType = "auth_error"    // upgrade rejected
)

// Envelope is the wire frame exchanged over the game socket
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MoveData is the payload of a move message
type MoveData struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	GameID   int `json:"game_id"`
	PlayerID int `json:"player_id"`
}

// GameUpdateData is the payload of a game_update message
type GameUpdateData struct {
	GameID        int    `json:"game_id"`
	Status        Status `json:"status"`
	BlackPlayerID *int   `json:"black_player_id"`
	WhitePlayerID *int   `json:"white_player_id"`
	Game          *Game  `json:"game,omitempty"`
}

// AuthenticatePayload carries the credential for a mid-session upgrade
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// AuthSuccessPayload is sent by the server after a successful upgrade
type AuthSuccessPayload struct {
	PlayerID int    `json:"player_id"`
	Username string `json:"username"`
}

// AuthErrorPayload is sent by the server when an upgrade is rejected
type AuthErrorPayload struct {
	Error string `json:"error"`
}

// Event is a decoded inbound message. The set of implementations is closed.
type Event interface {
	Type() MessageType
	sealed()
}

type MoveEvent struct{ MoveData }

type GameUpdateEvent struct{ GameUpdateData }

type AuthenticateEvent struct{ AuthenticatePayload }

type AuthSuccessEvent struct{ AuthSuccessPayload }

type AuthErrorEvent struct{ AuthErrorPayload }

// UnrecognizedEvent stands for anything that could not be decoded into a known
// variant: unknown discriminators, broken envelopes and broken payloads alike.
type UnrecognizedEvent struct {
	Kind MessageType
	Raw  []byte
	Err  error
}

func (MoveEvent) Type() MessageType         { return MessageTypeMove }
func (GameUpdateEvent) Type() MessageType   { return MessageTypeGameUpdate }
func (AuthenticateEvent) Type() MessageType { return MessageTypeAuthenticate }
func (AuthSuccessEvent) Type() MessageType  { return MessageTypeAuthSuccess }
func (AuthErrorEvent) Type() MessageType    { return MessageTypeAuthError }
func (e UnrecognizedEvent) Type() MessageType {
	return e.Kind
}

func (MoveEvent) sealed()         {}
func (GameUpdateEvent) sealed()   {}
func (AuthenticateEvent) sealed() {}
func (AuthSuccessEvent) sealed()  {}
func (AuthErrorEvent) sealed()    {}
func (UnrecognizedEvent) sealed() {}

// DecodeEvent decodes one inbound frame. It never fails: anything it cannot
// make sense of comes back as an UnrecognizedEvent.
func DecodeEvent(raw []byte) Event {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return UnrecognizedEvent{Raw: raw, Err: fmt.Errorf("decode envelope: %w", err)}
	}

	switch env.Type {
	case MessageTypeMove:
		data, err := decodeMove(env.Data)
		if err != nil {
			return unrecognized(env, raw, err)
		}
		return MoveEvent{MoveData: data}
	case MessageTypeGameUpdate:
		var ev GameUpdateEvent
		if err := decodePayload(env.Data, &ev.GameUpdateData); err != nil {
			return unrecognized(env, raw, err)
		}
		return ev
	case MessageTypeAuthenticate:
		var ev AuthenticateEvent
		if err := decodePayload(env.Data, &ev.AuthenticatePayload); err != nil {
			return unrecognized(env, raw, err)
		}
		return ev
	case MessageTypeAuthSuccess:
		var ev AuthSuccessEvent
		if err := decodePayload(env.Data, &ev.AuthSuccessPayload); err != nil {
			return unrecognized(env, raw, err)
		}
		return ev
	case MessageTypeAuthError:
		var ev AuthErrorEvent
		if err := decodePayload(env.Data, &ev.AuthErrorPayload); err != nil {
			return unrecognized(env, raw, err)
		}
		return ev
	}
	return UnrecognizedEvent{Kind: env.Type, Raw: raw}
}

// NewMoveMessage builds the outbound move frame
func NewMoveMessage(gameID, playerID, x, y int) (Envelope, error) {
	return newEnvelope(MessageTypeMove, MoveData{X: x, Y: y, GameID: gameID, PlayerID: playerID})
}

// NewAuthenticateMessage builds the outbound credential upgrade frame
func NewAuthenticateMessage(token string) (Envelope, error) {
	return newEnvelope(MessageTypeAuthenticate, AuthenticatePayload{Token: token})
}

func newEnvelope(t MessageType, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Data: data}, nil
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(data, v)
}

// decodeMove rejects moves without coordinates or player rather than
// letting them default to zero
func decodeMove(data json.RawMessage) (MoveData, error) {
	var wire struct {
		X        *int `json:"x"`
		Y        *int `json:"y"`
		GameID   int  `json:"game_id"`
		PlayerID *int `json:"player_id"`
	}
	if err := decodePayload(data, &wire); err != nil {
		return MoveData{}, err
	}
	switch {
	case wire.X == nil || wire.Y == nil:
		return MoveData{}, fmt.Errorf("missing coordinates")
	case wire.PlayerID == nil:
		return MoveData{}, fmt.Errorf("missing player_id")
	}
	return MoveData{X: *wire.X, Y: *wire.Y, GameID: wire.GameID, PlayerID: *wire.PlayerID}, nil
}

func unrecognized(env Envelope, raw []byte, err error) UnrecognizedEvent {
	return UnrecognizedEvent{Kind: env.Type, Raw: raw, Err: fmt.Errorf("decode %s payload: %w", env.Type, err)}
}
