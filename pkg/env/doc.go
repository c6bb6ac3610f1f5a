// Package env decides which deployment environment the client runs in and
// resolves it to a base URL.
//
// # Overview
//
// Resolution combines four inputs, in precedence order:
//
//  1. An explicit "is production" flag from the caller.
//  2. A manual environment persisted by an operator.
//  3. The release channel (develop / trial / release).
//  4. The host platform and environment signals.
//
// The resolved name selects a Profile from the Registry. Testing and
// production profiles may have their base URL replaced by a persisted
// override. Development is never overridable.
//
// # Usage
//
//	manager := env.NewManager(env.Options{
//	    Registry: env.DefaultRegistry(),
//	    Store:    storage.NewStore(backend, logger),
//	    Signals:  signals.NewEnvSource(signals.DefaultEnvVars()),
//	    Logger:   logger,
//	})
//
//	cfg := manager.EnvConfig(ctx, nil)
//	fmt.Println(cfg.Env, cfg.BaseURL)
//
//	if _, err := manager.SetEnvironmentBaseURL(ctx, "testing", "192.168.1.10:8080/app"); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// Manager is safe for concurrent use. The registry can be swapped at runtime
// with SetRegistry, for example by a config file watcher.
package env
