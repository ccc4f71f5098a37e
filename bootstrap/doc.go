// Package bootstrap runs a glowbook process: it validates the typed config,
// builds the logger, starts registered components in order, runs lifecycle
// hooks and shuts everything down on SIGINT/SIGTERM.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(cloudService)
//	app.RegisterComponent(httpServer)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap
