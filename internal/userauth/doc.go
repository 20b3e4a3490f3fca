// Package userauth implements the "Login with Twitch" HTTP surface: a login page, an
// endpoint that sends the user to id.twitch.tv to begin an authorization code grant
// flow, and the redirect URI that Twitch sends them back to.
//
// Once the callback has exchanged its authorization code for a user access token and
// fetched the profile of the user who granted it, everything else (finding or creating
// the user, issuing a token record, noting profile drift) is handed off to the login
// controller. This package only decides where to redirect the user afterward:
//
// - https://dev.twitch.tv/docs/authentication/getting-tokens-oauth/#authorization-code-grant-flow
package userauth
