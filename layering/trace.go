package layering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-lazyconf"
)

// Trace captures, for one path, what each layer of a stack holds there.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how a specific scope contributed to a traced path.
type Provenance struct {
	Scope      Scope  `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Path       string `json:"path"`
	Value      any    `json:"value,omitempty"`
	Found      bool   `json:"found"`
}

// Winner returns the first layer that holds a non-nil value, which is the
// layer Merge resolves the path from.
func (t Trace) Winner() (Provenance, bool) {
	for _, prov := range t.Layers {
		if prov.Found && prov.Value != nil {
			return prov, true
		}
	}
	return Provenance{}, false
}

// Trace walks path in every layer, strongest first. Missing keys and
// out-of-range indexes are reported as not found; evaluation failures abort.
// Found values are exported to plain data.
func (s *Stack) Trace(path ...any) (Trace, error) {
	return s.TraceContext(context.Background(), path...)
}

// TraceContext is Trace with ctx for the evaluations it triggers.
func (s *Stack) TraceContext(ctx context.Context, path ...any) (Trace, error) {
	label := formatPath(path)
	trace := Trace{Path: label}
	if s == nil {
		return trace, nil
	}
	for _, layer := range s.layers {
		prov := Provenance{
			Scope:      layer.Scope.clone(),
			SnapshotID: layer.SnapshotID,
			Path:       label,
		}
		if layer.Tree != nil {
			value, err := lazyconf.GetPathContext(ctx, layer.Tree, path...)
			switch {
			case err == nil:
				plain, err := lazyconf.ExportContext(ctx, value)
				if err != nil {
					return Trace{}, err
				}
				prov.Value = plain
				prov.Found = true
			case evaluationFailed(err):
				return Trace{}, fmt.Errorf("layering: trace %s in scope %s: %w", label, layer.Scope.Name, err)
			}
		}
		trace.Layers = append(trace.Layers, prov)
	}
	return trace, nil
}

func evaluationFailed(err error) bool {
	var slotErr *lazyconf.SlotError
	return errors.As(err, &slotErr) && slotErr.Op == "evaluate"
}

func formatPath(path []any) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = fmt.Sprint(segment)
	}
	return strings.Join(parts, ".")
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
