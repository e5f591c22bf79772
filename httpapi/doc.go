// Package httpapi exposes the checkout operations over HTTP with fiber.
//
// Errors from any route are rendered as
//
//	{"error": {"code": 404, "text_code": "CHECKOUT_ORDER_NOT_FOUND", "message": "..."}}
//
// using core.MapError, so handlers return errors instead of writing them.
package httpapi
