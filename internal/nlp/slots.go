package nlp

// SlotSchema declares the required and optional argument names of an intent.
type SlotSchema struct {
	Required []string
	Optional []string
}

// IntentSchemas is the static slot table, loaded once and immutable at
// runtime. Intents with no entry are treated as requiring nothing.
var IntentSchemas = map[string]SlotSchema{
	"view_tasks": {
		Optional: []string{"filter_status"},
	},
	"create_task": {
		Required: []string{"title"},
		Optional: []string{"description", "priority"},
	},
	"mark_done": {
		Required: []string{"task_numbers"},
	},
	"mark_progress": {
		Required: []string{"task_numbers"},
	},
	"view_progress": {},
	"get_help":      {},
}

// MissingSlots reports which required slots of the intent are absent or empty
// in args.
func MissingSlots(intent string, args map[string]any) []string {
	schema, ok := IntentSchemas[intent]
	if !ok {
		return nil
	}
	var missing []string
	for _, slot := range schema.Required {
		if isEmptySlot(args[slot]) {
			missing = append(missing, slot)
		}
	}
	return missing
}

// declaredSlots returns the full slot name set for an intent, used to confine
// extracted arguments to the schema.
func declaredSlots(intent string) map[string]bool {
	schema, ok := IntentSchemas[intent]
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(schema.Required)+len(schema.Optional))
	for _, s := range schema.Required {
		out[s] = true
	}
	for _, s := range schema.Optional {
		out[s] = true
	}
	return out
}

func isEmptySlot(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []int:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}
