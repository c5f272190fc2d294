package nbi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/orbital-guard/model"
)

// PredictRequest asks for the hazards threatening TargetName. A nil Time
// means the server's current simulation time.
type PredictRequest struct {
	TargetName string     `json:"targetName"`
	Time       *time.Time `json:"time,omitempty"`
}

// Validate checks the request.
func (r PredictRequest) Validate() error {
	if strings.TrimSpace(r.TargetName) == "" {
		return fmt.Errorf("%w: targetName is required", ErrInvalidRequest)
	}
	return nil
}

// EncodePredictRequest converts r into its wire form.
func EncodePredictRequest(r PredictRequest) (*structpb.Struct, error) {
	fields := map[string]interface{}{"targetName": r.TargetName}
	if r.Time != nil {
		fields["time"] = r.Time.UTC().Format(time.RFC3339Nano)
	}
	return structpb.NewStruct(fields)
}

// DecodePredictRequest parses and validates the wire form.
func DecodePredictRequest(s *structpb.Struct) (PredictRequest, error) {
	if s == nil {
		return PredictRequest{}, fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	var req PredictRequest
	fields := s.GetFields()
	if v, ok := fields["targetName"]; ok {
		name, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return PredictRequest{}, fmt.Errorf("%w: targetName must be a string", ErrInvalidRequest)
		}
		req.TargetName = name.StringValue
	}
	if v, ok := fields["time"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			t, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
			if err != nil {
				return PredictRequest{}, fmt.Errorf("%w: time: %v", ErrInvalidRequest, err)
			}
			t = t.UTC()
			req.Time = &t
		}
	}
	return req, req.Validate()
}

// EncodeHazards wraps hazards as {"hazards": [...]}.
func EncodeHazards(hazards []model.HazardRecord) (*structpb.Struct, error) {
	list := make([]interface{}, 0, len(hazards))
	for _, h := range hazards {
		entry := map[string]interface{}{
			"debrisName": h.DebrisName,
			"type":       string(h.Type),
			"distance":   h.Distance,
			"severity":   string(h.Severity),
			"collision":  h.Collision,
		}
		if h.ObjectKey != "" {
			entry["objectKey"] = h.ObjectKey
		}
		if h.TimeToCollision != nil {
			entry["timeToCollision"] = *h.TimeToCollision
		}
		list = append(list, entry)
	}
	return structpb.NewStruct(map[string]interface{}{"hazards": list})
}

// DecodeHazards is the inverse of EncodeHazards. A missing list decodes as
// empty.
func DecodeHazards(s *structpb.Struct) ([]model.HazardRecord, error) {
	out := []model.HazardRecord{}
	if s == nil {
		return out, nil
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode hazard response: %w", err)
	}
	var body struct {
		Hazards []model.HazardRecord `json:"hazards"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode hazard response: %w", err)
	}
	if body.Hazards != nil {
		out = body.Hazards
	}
	return out, nil
}
