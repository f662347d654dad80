// Package server provides HTTP routing, middleware, and OAuth callback handling for the CLI and web backend.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation registers "METHOD /path" patterns on an [http.ServeMux],
// so path wildcards are read with [http.Request.PathValue] and mismatched methods get 405.
//
// [Logging] and [Recover] are the stock middleware. [WriteJSON] and [WriteError] produce the
// JSON bodies every endpoint uses; errors are always {"error": "<message>"}.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the authorization code callback for `djai auth login`.
// A temporary server listens on the redirect URI's host, the handler validates the state
// parameter, exchanges the code through an [Exchanger], and sends the credential through a channel.
// It only processes one callback.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
