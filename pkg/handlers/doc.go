// Package handlers provides the built-in resource handlers and the registry
// the validator and executor resolve them through. Each handler owns one
// resource type's Test/Apply/CurrentState behavior; everything OS-facing
// stays behind small injectable seams so the logic tests without a real
// package manager.
package handlers
