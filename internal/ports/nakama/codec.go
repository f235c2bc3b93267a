package nakama

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/quarrelgame-framework/server/internal/app"
	"github.com/quarrelgame-framework/server/internal/domain"
)

var eventOpCodes = map[app.EventKind]int64{
	app.EventParticipantJoined:    OpParticipantJoined,
	app.EventParticipantLeft:      OpParticipantLeft,
	app.EventParticipantReady:     OpParticipantReady,
	app.EventParticipantUnready:   OpParticipantUnready,
	app.EventHostChanged:          OpHostChanged,
	app.EventSettingsChanged:      OpSettingsChanged,
	app.EventSessionStarting:      OpSessionStarting,
	app.EventSessionStarted:       OpSessionStarted,
	app.EventSessionStartFailed:   OpSessionStartFailed,
	app.EventParticipantRespawned: OpParticipantRespawned,
	app.EventCombatModeSet:        OpCombatModeSet,
	app.EventSessionEnding:        OpSessionEnding,
	app.EventSessionEnded:         OpSessionEnded,
	app.EventActionResolved:       OpActionResolved,
	app.EventHitstop:              OpHitstop,
	app.EventStateReset:           OpStateReset,
}

// structFromValue converts any JSON-encodable value into a protobuf Struct.
// Non-object values are wrapped under "value".
func structFromValue(v any) (*structpb.Struct, error) {
	if v == nil {
		return &structpb.Struct{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		var scalar any
		if err := json.Unmarshal(raw, &scalar); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		fields = map[string]any{"value": scalar}
	}
	return structpb.NewStruct(fields)
}

// encodePayload produces the binary wire form of a payload.
func encodePayload(v any) ([]byte, error) {
	s, err := structFromValue(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// decodePayload reads a binary Struct into v. An empty message leaves v untouched.
func decodePayload(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal struct: %w", err)
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	return json.Unmarshal(raw, v)
}

// encodeJSON renders a value as protojson text for labels and RPC responses.
func encodeJSON(v any) (string, error) {
	s, err := structFromValue(v)
	if err != nil {
		return "", err
	}
	b, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// matchLabel is indexed by Nakama for match listing.
type matchLabel struct {
	SessionID    string `json:"session_id"`
	Phase        string `json:"phase"`
	Map          string `json:"map"`
	Open         bool   `json:"open"`
	Participants int    `json:"participants"`
}

func labelFor(snap *app.Snapshot) matchLabel {
	return matchLabel{
		SessionID:    snap.SessionID,
		Phase:        string(snap.Phase),
		Map:          snap.Map,
		Open:         snap.Phase == domain.PhaseWaiting,
		Participants: len(snap.Participants),
	}
}

// Client request payloads.

type loadAckRequest struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error,omitempty"`
}

type hitReportRequest struct {
	Defender string `json:"defender"`
	Result   string `json:"result"`
}

type selectCharacterRequest struct {
	CharacterID string `json:"characterId"`
}

type physicalStateRequest struct {
	Airborne bool `json:"airborne"`
}

// Server-only payloads.

type loadRequestPayload struct {
	RequestID  string `json:"requestId"`
	ResourceID string `json:"resourceId"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
