// Package channels builds and executes channel-tree creation batches: one
// decorated parent (spacer) channel plus its children, each carrying the
// attribute and permission templates the clan layout expects.
package channels

import "fmt"

// Permission is one channel permission entry, applied after creation.
type Permission struct {
	Key   string
	Value int
}

// Spec describes one channel to be created. A batch is an ordered list of
// Specs with exactly one parent (Parent == nil) in first position; every
// child references that parent within the same batch.
type Spec struct {
	// Name is the final channel name (the parent's is already decorated).
	Name string
	// Parent is nil for the batch parent.
	Parent *Spec
	// Attributes are the channel properties passed at creation time.
	Attributes map[string]string
	// Permissions are applied one by one after creation.
	Permissions []Permission
	// ID is assigned by the executor once the channel exists.
	ID int
}

// IsParent reports whether the spec is the batch parent.
func (s *Spec) IsParent() bool {
	return s.Parent == nil
}

// NewParentSpec builds the batch parent: a decorated spacer channel that no
// client can join, matching the clan template layout.
func NewParentSpec(name string) *Spec {
	attrs := defaultAttributes()
	// Spacer: silent codec, zero capacity.
	attrs["channel_codec_quality"] = "0"
	attrs["channel_flag_maxclients_unlimited"] = "0"
	attrs["channel_flag_maxfamilyclients_unlimited"] = "0"
	attrs["channel_maxclients"] = "0"
	attrs["channel_maxfamilyclients"] = "0"

	return &Spec{
		Name:       fmt.Sprintf("[cspacer123] ★ %s ★", name),
		Attributes: attrs,
		Permissions: []Permission{
			{Key: "i_channel_needed_modify_power", Value: 75},
			{Key: "i_channel_needed_delete_power", Value: 75},
			{Key: "i_channel_needed_join_power", Value: 75},
			{Key: "i_channel_needed_permission_modify_power", Value: 75},
		},
	}
}

// NewChildSpec builds a child channel referencing the batch parent.
func NewChildSpec(name string, parent *Spec) *Spec {
	return &Spec{
		Name:       name,
		Parent:     parent,
		Attributes: defaultAttributes(),
		Permissions: []Permission{
			{Key: "i_channel_needed_modify_power", Value: 70},
			{Key: "i_channel_needed_delete_power", Value: 70},
			{Key: "i_channel_needed_join_power", Value: 35},
			{Key: "i_channel_needed_permission_modify_power", Value: 70},
		},
	}
}

func defaultAttributes() map[string]string {
	return map[string]string{
		"channel_codec":                          "4",
		"channel_codec_quality":                  "10",
		"channel_flag_default":                   "0",
		"channel_flag_password":                  "0",
		"channel_flag_permanent":                 "1",
		"channel_flag_semi_permanent":            "0",
		"channel_flag_maxclients_unlimited":      "1",
		"channel_flag_maxfamilyclients_unlimited": "1",
		"channel_maxclients":                     "-1",
		"channel_maxfamilyclients":               "-1",
		"channel_needed_talk_power":              "0",
		"channel_topic":                          "",
	}
}
