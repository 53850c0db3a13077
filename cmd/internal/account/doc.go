// Package account exposes the pre-existing account records to the auth
// surface through a narrow read boundary.
//
// Account CRUD lives elsewhere; this package only answers "who is this
// identifier" and "what are the login credentials for this email", plus
// the password hashing wrappers the login path needs.
package account
