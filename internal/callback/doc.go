// Package callback implements the HTTP server functionality required to handle incoming
// EventSub webhook requests from Twitch, as described in
// https://dev.twitch.tv/docs/eventsub/handling-webhook-events/
//
// The only subscription type we register is 'user.update', which lets us reconcile a
// user's stored profile whenever they change it on Twitch, rather than waiting until
// they next log in.
package callback
