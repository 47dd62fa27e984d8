// Package objects contains the objects shared by the biz services, the HTTP handlers and the model engine.
// To avoid circular dependencies, we put them here.
// JSON tags use camel case to match what the web client expects.
package objects
