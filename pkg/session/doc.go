// Package session holds the identity of the user behind one browser
// context.
//
// A Store caches the current Session and keeps it in step with the
// server through four operations: CheckSession, Login, Register and
// Logout. Each operation is fenced by a generation number so that a
// response arriving after a newer operation has started is dropped: a
// profile fetch that resolves after Logout cannot log the user back in.
//
//	st := session.New(client, session.WithCredentials(tokens))
//	st.CheckSession(ctx)
//	if st.Current().Authenticated() {
//	    ...
//	}
//
// CheckSession never fails; transport and API errors there leave the
// session unauthenticated. Login and Register return the server's error
// unchanged so callers can show its message.
package session
