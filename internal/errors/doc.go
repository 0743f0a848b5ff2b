// Package errors provides the coded, categorized errors used across the
// storefront client.
//
// Every failure that can reach a caller belongs to one category of the
// storefront error taxonomy:
//   - transport: the API could not be reached
//   - api: the API answered with a non-2xx status
//   - decode: the API answered with a body that does not match its record
//   - storage: durable client state was unreadable or unwritable
//   - validation: caller input was rejected before any request was made
//   - auth: the cached session lacks the role an action needs
//   - config, cli: local setup problems
//
// Passive refreshes and rehydration recover transport, api, storage and
// decode failures locally. Explicit user actions surface them, and
// UserMessage returns the text that should be shown verbatim.
//
// # Usage
//
//	err := errors.New("E002").WithStatus(401).WithMessage("Invalid credentials")
//	errors.UserMessage(err) // "Invalid credentials"
//	fmt.Println(err.Format())
package errors
