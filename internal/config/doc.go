// Package config loads tally's configuration.
//
// The schema is CUE, embedded from schema.cue. A user file is unified with
// #Config, so it may set any subset of fields and gets defaults for the
// rest; unknown fields and out-of-range values are rejected with the
// position CUE reports. TALLY_HINT_PROVIDER and TALLY_DB override the file
// and are checked against the same schema.
package config
