package config

import "dario.cat/mergo"

// mergeOverrides merges a YAML-sourced overrides struct onto a defaults
// struct in place; non-zero fields in overrides win. Used for every
// section so an operator's config file only needs to name the fields it
// wants to change.
func mergeOverrides(defaults, overrides any) error {
	return mergo.Merge(defaults, overrides, mergo.WithOverride)
}
