// Package authz resolves the authorization context of data requests.
//
// Core concepts:
//
//   - AuthUser: the per-request context {userId, organizationId?, organizationRole?}.
//     A nil *AuthUser is the anonymous caller.
//
//   - ContextResolver: looks up the session from request headers and, when the
//     session has an active organization, the caller's role in it.
//
// Usage rules:
//
//  1. Resolve once per request and never reuse the result for another request.
//  2. A missing membership degrades to an unknown role, it is not an error.
//  3. Store the result with WithAuthUser, it is set-once per context.
package authz
