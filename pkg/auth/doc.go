// Package auth defines the marketplace roles and the capability checks that
// gate client-side actions.
//
// Roles form a closed set. The API spells them as user_type strings ("user",
// "farmer", "transporter", "admin"); ParseRole is the only place those
// strings are interpreted, so an unexpected value is rejected at the HTTP
// boundary instead of silently granting or denying access later.
//
// Capability checks are advisory. They decide which actions the client
// offers and short-circuit requests that the server would reject anyway;
// the server remains the authority.
//
// # Usage
//
//	if err := auth.Require(sess.Role, auth.CapReviewApplications); err != nil {
//	    code, _ := auth.StatusCode(err) // 401 for guests, 403 otherwise
//	}
package auth
