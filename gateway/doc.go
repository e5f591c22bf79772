// Package gateway defines the payment gateway adapter contract and the HMAC
// helpers adapters share. One adapter is selected per deployment through
// configuration; gateway/pushinpay is the shipped implementation.
package gateway
