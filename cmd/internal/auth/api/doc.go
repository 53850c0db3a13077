// Package api exposes the authentication HTTP surface: login, refresh,
// logout, session listing and revocation, plus the access-token gate other
// handlers mount in front of protected routes.
//
// Handlers speak a small JSON contract. Gate denials use fixed uppercase
// codes; everything else uses lowercase snake codes.
package api
