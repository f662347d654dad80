// Package services implements the two outbound integrations of djai.
//
// # Catalog
//
// [SpotifyService] implements [Catalog] against the Spotify Web API: track search,
// track lookup, the current profile, playlist creation and adding items. Every call
// takes its bearer token from a [TokenProvider], normally an [auth.CredentialStore],
// so expired tokens are refreshed before the request is sent.
//
// It also carries the authorization-code helpers used by `djai auth login` and the
// web login route: [SpotifyService.AuthURL], [SpotifyService.Exchange] and
// [SpotifyService.Refresher].
//
// # Recommendations
//
// [OpenAIService] implements [Recommender] with a single chat completion in JSON mode.
// Transport failures (network errors, 429, 5xx) are retried with exponential backoff;
// a malformed payload is returned as [shared.ErrInvalidRecommendationFormat] and never retried.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token, or the API answered 401
//   - [shared.ErrAPIRequest] : any other non-2xx response
//   - [shared.ErrInvalidRecommendationFormat] : completion payload failed the shape check
package services
