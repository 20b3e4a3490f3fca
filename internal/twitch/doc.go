// Package twitch adapts the Helix API client to the two capabilities the rest of the
// service depends on: a Directory that looks up the current profile of any Twitch
// user with our app access token, and a Provider that carries out the authorization
// code grant flow on behalf of a user who's logging in.
//
// Helix calls are rate-limited client-side, so that a burst of logins or admin
// lookups degrades into waiting rather than into 429 responses from Twitch.
package twitch
