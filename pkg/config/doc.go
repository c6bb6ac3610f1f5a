// Package config loads envroute configuration from YAML.
//
// A configuration file carries the environment profile table, the storage
// backend, signal sources, interceptor tuning and telemetry settings. Every
// field has a default, so an empty file (or no file) is a valid
// configuration:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("envroute.yaml")
//	if err != nil {
//	    return err
//	}
//	registry, err := cfg.Registry()
//
// Environment variables prefixed with ENVROUTE_ override file values, for
// example ENVROUTE_STORAGE_BACKEND=memory or
// ENVROUTE_PROFILES_TESTING_BASE_URL=http://192.168.1.10:8080/nodejsn73cv/.
// Variables from the dotenv files listed under signals.dotenv_files are
// loaded first and never replace variables already set in the process.
//
// Watcher reloads a file on change. A reload that fails validation is
// logged and dropped, leaving the previous configuration in place.
package config
