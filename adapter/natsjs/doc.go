// Package natsjs provides a NATS JetStream Source and a request/reply Sink for xrelay.
//
// Adapter name: "nats"
//
// The Source pulls from a durable consumer on a JetStream stream. Message
// bodies are events encoded with the configured codec. Messages are
// acknowledged once decoded and terminated when they cannot be decoded.
//
// The Sink sends each payload as a request to "<prefix>.<dc>.<node>" with the
// origin in the Xrelay-Origin header. Recipients answer "+ACK" or "-NAK"; Serve
// implements the recipient side.
package natsjs
