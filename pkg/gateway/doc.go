// Package gateway serves the storefront to browsers.
//
// Each browser gets a context, named by a signed cookie, holding its own
// app.App: API client, cart and session. Contexts share one storage
// backend under the prefix "ctx:<id>:", so a context torn down for
// idleness comes back with its cart and login on the next request.
//
// Routes are JSON in and out; errors use ErrorBody with the storefront
// error code and the user-facing message. GET /ws streams Frames: a
// "state" frame after every cart or session change and a "toast" frame
// for every notification.
//
//	srv := gateway.New(gateway.Options{
//	    Addr:    ":8080",
//	    BaseURL: "http://localhost:5000",
//	    Storage: store,
//	    Metrics: middleware.NewMetrics(),
//	})
//	err := srv.ListenAndServe(ctx)
package gateway
