// Package wallet coordinates wallet payment sheets (Apple Pay style) with an
// order backend.
//
// # Coordinator
//
// [NewCoordinator] takes a [Backend] and a [SheetLauncher]. Each call to
// [Coordinator.Start] runs at most one payment session at a time: it creates
// an order, fetches its totals, opens the sheet and then answers the sheet's
// events (merchant validation, payment method, shipping method, shipping
// contact, authorization and cancel) until the session closes. Options such as
// [WithShippingNegotiator] and [WithStrictZeroAmounts] control how shipping
// changes are priced, and [WithOnApprove], [WithOnCancel] and [WithOnError]
// report the outcome.
//
// Results that arrive after a session closed are discarded. A closed session
// never receives another complete call on its sheet.
//
// # Backend transport
//
// [NewBackendHandler] exposes an [OrderProvider] over `net/http`, and
// [HTTPBackend] is the matching client. Handler options such as
// [WithAuthenticator], [WithSignatureVerifier] and [WithRequireSignedRequests]
// enforce bearer API keys and canonical JSON signatures; [WithSigner] makes
// the client produce them.
//
// ## How it works
//
//   - The buyer taps the wallet button and the coordinator creates an order.
//   - The sheet opens with the order totals and asks the merchant to validate itself.
//   - Shipping changes are negotiated with the backend and the totals recomposed.
//   - The authorized payment token is forwarded to the backend, which approves or declines it.
package wallet
