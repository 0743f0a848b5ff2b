// Package api is the typed client for the marketplace REST API.
//
// Every response is decoded into an explicit record type and validated
// before it is returned, so callers never see a half-populated record. The
// three ways a call can fail map onto the storefront error taxonomy:
//
//   - E001 (transport): no response was received
//   - E002 (api): the server answered with a non-2xx status; the error
//     message is the server's "message", else its "error", else
//     "Request failed"
//   - E003 (decode): the body did not match the expected record
//
// Credentials travel two ways at once, as the server accepts either: the
// session cookie kept in the client's cookie jar, and an
// "Authorization: Bearer" header taken from a TokenSource.
//
// # Usage
//
//	tokens := api.NewTokenStore(store)
//	client := api.New("http://localhost:5000",
//	    api.WithTokenSource(tokens),
//	    api.WithTimeout(10*time.Second),
//	)
//	res, err := client.SearchProducts(ctx, "tomato")
package api
