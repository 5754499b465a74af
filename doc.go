// Package emailauth implements passwordless email authentication: one-time
// signin tokens delivered by email, session credentials minted as JWTs, and
// a request authorizer that turns bearer tokens into allow or deny policy
// decisions.
//
// Flow:
//   - Issuer mints a random one-time token for a known email address, stores
//     only its SHA-256 digest, and enforces a debounce window so repeated
//     requests cannot flood an inbox. The raw token travels solely inside the
//     signin link.
//   - Verifier redeems the link. Checks run in a fixed order (user exists,
//     a pending attempt exists, not already completed, token matches, not
//     expired) and completion is a conditional write, so a token can be
//     redeemed at most once even under concurrent requests.
//   - TokenService signs, validates, decodes, and refreshes session JWTs.
//     Refresh always validates the presented credential before re-signing.
//   - Authorizer evaluates a bearer token against the user store and produces
//     a policy decision with principal context on allow and a status code and
//     message on deny. It never returns an error; failures become denials.
//
// Storage backends live in store/dynamostore (DynamoDB) and store/bunstore
// (SQL via Bun). Both implement the UserStore contract, including the
// compare-and-swap UpdateEmailAuth write the issuer and verifier rely on.
// Email delivery ships with an SES implementation in mailer/sesmailer.
package emailauth
