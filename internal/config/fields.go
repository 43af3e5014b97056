package config

import "github.com/conn-castle/modlayer/internal/messages"

// FieldType classifies the kind of value a config field accepts.
type FieldType string

const (
	// FieldBool accepts true or false.
	FieldBool FieldType = "bool"
	// FieldEnum accepts one of a fixed set of options.
	FieldEnum FieldType = "enum"
	// FieldFreetext accepts arbitrary string input.
	FieldFreetext FieldType = "freetext"
	// FieldPositiveInt accepts a positive integer.
	FieldPositiveInt FieldType = "positive_int"
	// FieldList accepts a list of values.
	FieldList FieldType = "list"
)

// FieldOption describes a single selectable value for a field.
type FieldOption struct {
	Value       string
	Description string // empty for options without descriptions
}

// FieldDef describes a single config field's type, default, and valid options.
type FieldDef struct {
	Key     string
	Type    FieldType
	Default any
	Options []FieldOption
	// Env lists extra environment variables read for the key, in priority
	// order, after MODLAYER_<KEY>.
	Env []string
}

// fields is the canonical ordered registry of all config fields.
var fields = []FieldDef{
	{Key: "github.token", Type: FieldFreetext, Default: "", Env: []string{"GITHUB_TOKEN"}},
	{Key: "github.api_url", Type: FieldFreetext, Default: "https://api.github.com"},
	{Key: "github.per_page", Type: FieldPositiveInt, Default: 100},
	{Key: "github.quota_unauthenticated", Type: FieldPositiveInt, Default: 60},
	{Key: "github.quota_authenticated", Type: FieldPositiveInt, Default: 5000},
	{Key: "parallel", Type: FieldPositiveInt, Default: 4},
	{
		Key:     "log.level",
		Type:    FieldEnum,
		Default: "warn",
		Options: []FieldOption{
			{Value: "debug"},
			{Value: "info"},
			{Value: "warn"},
			{Value: "error"},
		},
	},
	{Key: "versions.source_url", Type: FieldFreetext, Default: ""},
	{Key: "versions.newest_first", Type: FieldBool, Default: true},
	{Key: "versions.known", Type: FieldList, Default: []string{"3.7", "3.8", "3.9", "3.10", "3.11", "4.0"}},
	{Key: "versions.tags", Type: FieldList},
	{Key: "versions.loaders", Type: FieldList, Default: []string{"bepinex"}},
	{
		Key:     "filters.minor_fallback",
		Type:    FieldEnum,
		Default: "strict",
		Options: []FieldOption{
			{Value: "strict", Description: messages.ConfigFallbackStrictDescription},
			{Value: "none", Description: messages.ConfigFallbackNoneDescription},
		},
	},
	{
		Key:     "install.conflict_policy",
		Type:    FieldEnum,
		Default: "fail",
		Options: []FieldOption{
			{Value: "fail", Description: messages.ConfigPolicyFailDescription},
			{Value: "transfer", Description: messages.ConfigPolicyTransferDescription},
		},
	},
	{Key: "download.max_retries", Type: FieldPositiveInt, Default: 3},
	{Key: "download.trip_threshold", Type: FieldPositiveInt, Default: 5},
}

// fieldIndex provides O(1) lookup by key.
var fieldIndex = buildFieldIndex()

func buildFieldIndex() map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f.Key] = i
	}
	return idx
}

// LookupField returns the field definition for the given config key.
// Returns false when the key is not in the catalog.
func LookupField(key string) (FieldDef, bool) {
	i, ok := fieldIndex[key]
	if !ok {
		return FieldDef{}, false
	}
	return copyFieldDef(fields[i]), true
}

// Fields returns a copy of all registered field definitions in catalog order.
func Fields() []FieldDef {
	out := make([]FieldDef, len(fields))
	for i, f := range fields {
		out[i] = copyFieldDef(f)
	}
	return out
}

// FieldOptionValues returns the option values for a field as a plain string slice.
// Returns nil when the key is not in the catalog or has no options.
func FieldOptionValues(key string) []string {
	f, ok := LookupField(key)
	if !ok || len(f.Options) == 0 {
		return nil
	}
	values := make([]string, len(f.Options))
	for i, opt := range f.Options {
		values[i] = opt.Value
	}
	return values
}

// copyFieldDef returns a copy of a FieldDef so callers cannot mutate the registry.
func copyFieldDef(f FieldDef) FieldDef {
	if len(f.Options) > 0 {
		f.Options = append([]FieldOption(nil), f.Options...)
	}
	if len(f.Env) > 0 {
		f.Env = append([]string(nil), f.Env...)
	}
	return f
}
