// Package config provides loading, validation and environment overlay for
// the diary backend's runtime configuration.
//
// Example:
//
//	cfg, err := config.Load(path) // .yaml, .yml, .json or .cue; "" means defaults
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := config.Validate(cfg); err != nil {
//	    return err
//	}
package config
