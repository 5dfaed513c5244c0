package action

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
)

//go:embed action.schema.json
var schemaSource string

var actionSchema = jsonschema.MustCompileString("action.schema.json", schemaSource)

// Result is the structured outcome of shape validation.
type Result struct {
	Valid  bool               `json:"valid"`
	Errors []string           `json:"errors,omitempty"`
	Reason rules.RejectReason `json:"reason,omitempty"`
}

// Err converts an invalid result into a rejection.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return rules.Reject(r.Reason, "%s", strings.Join(r.Errors, "; "))
}

func invalid(reason rules.RejectReason, msgs ...string) Result {
	return Result{Valid: false, Errors: msgs, Reason: reason}
}

// Normalize trims the free-text fields and lowercases the player key.
func Normalize(a Action) Action {
	a.ActionID = strings.TrimSpace(a.ActionID)
	a.PlayerKey = strings.ToLower(strings.TrimSpace(a.PlayerKey))
	a.Type = Type(strings.ToLower(strings.TrimSpace(string(a.Type))))
	a.UseCardID = strings.TrimSpace(a.UseCardID)
	return a
}

// Validate checks a decoded action against the wire schema. It never panics.
func Validate(a Action) Result {
	raw, err := json.Marshal(Normalize(a))
	if err != nil {
		return invalid(rules.ReasonInvalidAction, fmt.Sprintf("encode action: %v", err))
	}
	_, res := ValidateJSON(raw)
	return res
}

// ValidateJSON decodes and validates a wire action. The returned action is
// normalized and only meaningful when the result is valid.
func ValidateJSON(raw []byte) (a Action, res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = invalid(rules.ReasonInvalidAction, fmt.Sprintf("validator panic: %v", r))
		}
	}()

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return a, invalid(rules.ReasonInvalidAction, fmt.Sprintf("malformed json: %v", err))
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return a, invalid(rules.ReasonInvalidAction, "action must be an object")
	}
	normalizeDoc(obj)

	if err := actionSchema.Validate(obj); err != nil {
		return a, invalid(reasonFor(obj), flatten(err)...)
	}

	normalized, err := json.Marshal(obj)
	if err != nil {
		return a, invalid(rules.ReasonInvalidAction, fmt.Sprintf("re-encode action: %v", err))
	}
	if err := json.Unmarshal(normalized, &a); err != nil {
		return a, invalid(rules.ReasonInvalidAction, fmt.Sprintf("decode action: %v", err))
	}
	return Normalize(a), Result{Valid: true}
}

func normalizeDoc(obj map[string]any) {
	for _, key := range []string{"actionId", "playerKey", "type", "useCardId"} {
		s, ok := obj[key].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if key == "playerKey" || key == "type" {
			s = strings.ToLower(s)
		}
		obj[key] = s
	}
}

// reasonFor picks UNKNOWN_ACTION_TYPE when the only problem worth naming is
// an unrecognised type string.
func reasonFor(obj map[string]any) rules.RejectReason {
	t, ok := obj["type"].(string)
	if !ok {
		return rules.ReasonInvalidAction
	}
	switch Type(t) {
	case TypePlace, TypePass, "":
		return rules.ReasonInvalidAction
	default:
		return rules.ReasonUnknownActionType
	}
}

// flatten turns a jsonschema error tree into sorted leaf messages.
func flatten(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return out
}
