// Package render turns events into notification content.
//
// Rendering is a pure function of event data: subject, HTML body, and a
// plain-text preview keyed on the event kind, plus a digest variant that
// aggregates many events into one message, newest first. The dispatch
// engine treats the output as opaque; transports receive it as-is.
//
// Templates are embedded at build time and parsed once in NewRenderer.
package render
